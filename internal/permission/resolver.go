// Package permission maps domains to their access mode from the
// permission list fetched once per session.
package permission

import (
	"strings"

	"github.com/toannc04966/pastel-inbox/internal/model"
)

// Resolver is a pure lookup over the last-fetched permission list.
// It must be rebuilt (via Update) whenever the permission list is
// refreshed: session start, login, or an admin-initiated change.
type Resolver struct {
	modes    map[string]model.AccessMode
	selfOnly bool
	email    string
}

// New creates a resolver from a fetched permission list. selfOnly and
// email come from the same account overview response.
func New(perms []model.Permission, selfOnly bool, email string) *Resolver {
	r := &Resolver{
		modes:    make(map[string]model.AccessMode, len(perms)),
		selfOnly: selfOnly,
		email:    email,
	}
	r.update(perms)
	return r
}

// Update replaces the permission list. Later duplicates for the same
// domain win, preserving the at-most-one-entry-per-domain invariant.
func (r *Resolver) Update(perms []model.Permission) {
	r.modes = make(map[string]model.AccessMode, len(perms))
	r.update(perms)
}

func (r *Resolver) update(perms []model.Permission) {
	for _, p := range perms {
		r.modes[strings.ToLower(p.Domain)] = p.Mode
	}
}

// Resolve returns the access mode for a domain. Unknown domains report
// ok=false and are treated as no access.
func (r *Resolver) Resolve(domain string) (model.AccessMode, bool) {
	if r.selfOnly {
		return model.ModeSelfOnly, true
	}
	mode, ok := r.modes[strings.ToLower(domain)]
	return mode, ok
}

// SelfOnly reports whether the whole account is pinned to the caller's
// own address, disabling domain and address selection.
func (r *Resolver) SelfOnly() bool {
	return r.selfOnly
}

// SelfEmail returns the caller's resolved address, when known.
func (r *Resolver) SelfEmail() string {
	return r.email
}
