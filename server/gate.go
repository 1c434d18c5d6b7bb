package server

import (
	"context"
	"net/http"

	"github.com/webb-auth/websso/oidc"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the authenticated claims stashed by the
// requireSession gate.
func ClaimsFromContext(ctx context.Context) (oidc.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(oidc.Claims)
	return claims, ok
}

// requireSession gates routes that must only be reached with a valid
// authenticated session.  Unauthenticated requests are redirected into the
// login flow, remembering the originally requested URL so the flow can
// return there afterwards.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.currentClaims(r)
		if !ok {
			sess := s.browserSession(r)
			sess.Values[keyReturnTo] = r.URL.RequestURI()
			if err := sess.Save(r, w); err != nil {
				s.logger.Error("unable to save browser cookie", "error", err)
			}
			http.Redirect(w, r, loginPath, http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAnonymous gates routes that must not be reached while already
// authenticated: an authenticated browser cannot re-enter the login flow and
// is sent toward logout instead of being silently passed through.
func (s *Server) requireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.currentClaims(r); ok {
			http.Redirect(w, r, logoutPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
