// Package access decides who may touch what: the role hierarchy, team
// membership lookups and bearer-token principals.
package access

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a team member's role. The numeric value is its rank.
type Role uint8

const (
	RoleViewer Role = iota
	RoleEditor
	RoleAdmin
)

var roleNames = [...]string{
	RoleViewer: "viewer",
	RoleEditor: "editor",
	RoleAdmin:  "admin",
}

var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts exactly the three stored role names.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if s == name {
			return Role(r), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

func (r Role) MarshalText() ([]byte, error) {
	if int(r) >= len(roleNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(roleNames[r]), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Permits reports whether a member holding actual may perform an operation
// that requires required.
func Permits(actual, required Role) bool {
	return actual >= required
}
