package models

import (
	"database/sql/driver"
	"fmt"
	"slices"
)

// Role is the closed set of capabilities a user can hold.
type Role string

const (
	RoleStandard Role = "standard"
	RoleCreator  Role = "creator"
	RoleAdmin    Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleStandard, RoleCreator, RoleAdmin:
		return true
	default:
		return false
	}
}

// In reports whether r is one of allowed. Unknown roles never match, even
// when listed.
func (r Role) In(allowed ...Role) bool {
	switch r {
	case RoleStandard, RoleCreator, RoleAdmin:
		return slices.Contains(allowed, r)
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r *Role) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("role: unsupported scan type %T", src)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Role) Value() (driver.Value, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("unknown role %q", string(r))
	}
	return string(r), nil
}
