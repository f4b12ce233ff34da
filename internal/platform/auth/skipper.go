package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: probes and the metrics scrape.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. Pass it as JWTConfig.Skipper.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is served without credentials.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
