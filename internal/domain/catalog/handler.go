package catalog

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleStaff))
	read.GET("/categories", h.ListCategories)
	read.GET("/relationships", h.ListRelationships)
}

func (h *Handler) ListCategories(c echo.Context) error {
	onlyActive := true
	if v := c.QueryParam("all"); v != "" {
		all, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "all must be a boolean")
		}
		onlyActive = !all
	}
	items, err := h.svc.ListCategories(c.Request().Context(), onlyActive)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load categories")
	}
	if items == nil {
		items = []*Category{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

func (h *Handler) ListRelationships(c echo.Context) error {
	items, err := h.svc.ListRelationships(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load relationships")
	}
	if items == nil {
		items = []*Relationship{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}
