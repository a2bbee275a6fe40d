package shared

import "context"

// Business identifies the tenant a request operates on.
type Business string

const (
	// BusinessCNC is the CNC fabrication shop.
	BusinessCNC Business = "cnc"
	// BusinessInterior is the interior-design firm.
	BusinessInterior Business = "interior"
)

// Valid reports whether b is a known tenant.
func (b Business) Valid() bool {
	return b == BusinessCNC || b == BusinessInterior
}

// Businesses lists every tenant.
func Businesses() []Business {
	return []Business{BusinessCNC, BusinessInterior}
}

// Role is the authorization level granted to a principal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleViewer Role = "viewer"
)

// Principal is the identity resolved by the authentication collaborator.
type Principal struct {
	UserID   string   `json:"user_id"`
	Role     Role     `json:"role"`
	Business Business `json:"business"`
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// RequirePrincipal returns the principal or ErrNoPrincipal.
func RequirePrincipal(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || !p.Business.Valid() {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}
