package member

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// <prefix>-<group>/<suffix>: prefix stops at the first hyphen, the group
	// runs to the slash and may contain hyphens ("19-00639-4/00").
	memberCodeRe = regexp.MustCompile(`^([^-/]+)-([^/]+)/([^/]+)$`)
	cuilRe       = regexp.MustCompile(`^\d{2}-\d{8}-\d$`)
)

// HolderSuffix marks the family-group holder in a member code.
const HolderSuffix = "00"

// MemberCode is a parsed numero_afiliado.
type MemberCode struct {
	Prefix string
	Group  string
	Suffix string
}

// ParseMemberCode splits a code such as "19-00639-4/00".
func ParseMemberCode(s string) (MemberCode, error) {
	m := memberCodeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return MemberCode{}, fmt.Errorf("member code %q does not match <prefix>-<group>/<suffix>", s)
	}
	return MemberCode{Prefix: m[1], Group: m[2], Suffix: m[3]}, nil
}

// IsHolder reports whether the code belongs to the family-group holder.
func (c MemberCode) IsHolder() bool { return c.Suffix == HolderSuffix }

func (c MemberCode) String() string {
	return c.Prefix + "-" + c.Group + "/" + c.Suffix
}

// ValidCUIL reports whether s has the DD-DDDDDDDD-D shape. The check digit
// is not verified.
func ValidCUIL(s string) bool {
	return cuilRe.MatchString(s)
}
