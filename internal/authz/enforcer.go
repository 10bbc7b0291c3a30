// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package authz decides which roles may touch which admin resources. The
// RBAC model and policy are compiled in; there is no runtime policy file
// to drift from the code.
package authz

import (
	"fmt"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/dealhound/dealhound/internal/auth"
	"github.com/dealhound/dealhound/internal/logging"
)

// RBAC model: role inheritance, keyMatch on paths, exact method match
// with a * wildcard.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// policyRules is the built-in policy. Admins own the admin surface;
// viewers may read it.
var policyRules = [][]string{
	{"admin", "/api/v1/admin/*", "*"},
	{"viewer", "/api/v1/admin/*", "GET"},
}

var roleLinks = [][]string{
	{"admin", "viewer"}, // admin inherits viewer reads
}

// Enforcer wraps a synced casbin enforcer over the built-in policy.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer compiles the embedded model and policy.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create authz enforcer: %w", err)
	}

	for _, p := range policyRules {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", p, err)
		}
	}
	for _, g := range roleLinks {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, fmt.Errorf("add role link %v: %w", g, err)
		}
	}

	return &Enforcer{enforcer: e}, nil
}

// Allow reports whether role may perform method on path.
func (e *Enforcer) Allow(role, path, method string) (bool, error) {
	ok, err := e.enforcer.Enforce(role, path, method)
	if err != nil {
		return false, fmt.Errorf("enforce %s %s %s: %w", role, method, path, err)
	}
	return ok, nil
}

// Middleware authorizes the request's claims role against its path and
// method. Must run after auth.Middleware. Denials get 403.
func (e *Enforcer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromContext(r.Context())
		if claims == nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		ok, err := e.Allow(claims.Role, r.URL.Path, r.Method)
		if err != nil {
			logging.Error().Err(err).Str("role", claims.Role).Msg("authz enforcement error")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !ok {
			logging.Warn().
				Str("role", claims.Role).
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Msg("authz denied")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
