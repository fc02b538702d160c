package models

import (
	"encoding/json"
	"strings"

	"busclient/internal/domain"
)

// PrincipalKind tags which identity owns the session.
type PrincipalKind int

const (
	PrincipalNone PrincipalKind = iota
	PrincipalUser
	PrincipalOperator
)

func (k PrincipalKind) String() string {
	switch k {
	case PrincipalUser:
		return "user"
	case PrincipalOperator:
		return "operator"
	default:
		return "none"
	}
}

// UserAccount is the end-user identity reported by /user/check-session.
type UserAccount struct {
	ID       domain.ID     `json:"id"`
	FullName string        `json:"fullName"`
	Email    string        `json:"email"`
	Phone    string        `json:"phone"`
	Role     string        `json:"role"`
	Status   domain.Status `json:"status"`
}

// OperatorAccount is the counter-operator identity reported by /admin/check-session.
type OperatorAccount struct {
	ID       domain.ID     `json:"id"`
	FullName string        `json:"fullName"`
	Email    string        `json:"email"`
	Position string        `json:"position"`
	Status   domain.Status `json:"status"`
}

// Principal is a tagged union: exactly one of User/Operator is set, or neither for PrincipalNone.
type Principal struct {
	Kind     PrincipalKind
	User     *UserAccount
	Operator *OperatorAccount
}

func NoPrincipal() Principal {
	return Principal{Kind: PrincipalNone}
}

func UserPrincipal(u UserAccount) Principal {
	return Principal{Kind: PrincipalUser, User: &u}
}

func OperatorPrincipal(o OperatorAccount) Principal {
	return Principal{Kind: PrincipalOperator, Operator: &o}
}

func (p Principal) IsNone() bool {
	return p.Kind == PrincipalNone
}

// ID returns the identity id, 0 for PrincipalNone.
func (p Principal) ID() domain.ID {
	switch {
	case p.Kind == PrincipalUser && p.User != nil:
		return p.User.ID
	case p.Kind == PrincipalOperator && p.Operator != nil:
		return p.Operator.ID
	default:
		return 0
	}
}

func (p Principal) DisplayName() string {
	switch {
	case p.Kind == PrincipalUser && p.User != nil:
		return strings.TrimSpace(p.User.FullName)
	case p.Kind == PrincipalOperator && p.Operator != nil:
		return strings.TrimSpace(p.Operator.FullName)
	default:
		return ""
	}
}

// SameIdentity compares kind and id only; profile fields may change between probes.
func (p Principal) SameIdentity(o Principal) bool {
	return p.Kind == o.Kind && p.ID() == o.ID()
}

func (p Principal) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind     string           `json:"kind"`
		LoggedIn bool             `json:"isLoggedIn"`
		User     *UserAccount     `json:"user,omitempty"`
		Operator *OperatorAccount `json:"admin,omitempty"`
	}{
		Kind:     p.Kind.String(),
		LoggedIn: !p.IsNone(),
		User:     p.User,
		Operator: p.Operator,
	}
	return json.Marshal(out)
}
