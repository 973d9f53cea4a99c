package auth

// View identifies a role-partitioned surface of the client.
type View string

// Views the guard can gate or redirect to.
const (
	ViewLogin  View = "login"
	ViewPublic View = "public"
	ViewDual   View = "dual"
)

// viewRoles maps each gated view to the roles allowed to enter it.
// ViewLogin is open to everyone and intentionally absent.
var viewRoles = map[View]map[Role]bool{
	ViewPublic: {RoleAdmin: true, RoleUser: true, RoleRestricted: true},
	ViewDual:   {RoleAdmin: true, RoleUser: true},
}

// Decision is the outcome of an authorization check. A disallowed entry is
// corrected by navigation, never surfaced as a permission error: the UI is
// role-partitioned by construction, so a mismatch only means the user
// followed a path their role doesn't have.
type Decision struct {
	Allowed  bool
	Redirect View // target view when not allowed
}

// Allow is the decision that grants entry.
var Allow = Decision{Allowed: true}

// RedirectTo builds a redirect decision.
func RedirectTo(v View) Decision {
	return Decision{Redirect: v}
}

// Guard derives access decisions from the credential store. It is the only
// place role-based branching lives; views consult it and follow the
// decision.
type Guard struct {
	store *Store
}

// NewGuard creates a Guard over the given credential store.
func NewGuard(store *Store) *Guard {
	return &Guard{store: store}
}

// Authorize decides whether the given view may be entered.
// Anonymous users are redirected to login; authenticated users whose role is
// outside the view's allowed set are redirected to their default view.
func (g *Guard) Authorize(view View) Decision {
	role, ok := g.store.CurrentRole()
	if !ok {
		if view == ViewLogin {
			return Allow
		}
		return RedirectTo(ViewLogin)
	}

	// Already authenticated: the login view bounces to the default view.
	if view == ViewLogin {
		return RedirectTo(DefaultView(role))
	}

	allowed, known := viewRoles[view]
	if !known {
		return RedirectTo(DefaultView(role))
	}
	if !allowed[role] {
		return RedirectTo(DefaultView(role))
	}
	return Allow
}

// DefaultView is the landing view for a role: restricted users only see the
// public knowledge base; everyone else lands on the dual view.
func DefaultView(role Role) View {
	if role == RoleRestricted {
		return ViewPublic
	}
	return ViewDual
}
