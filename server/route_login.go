package server

import (
	"net/http"

	"github.com/webb-auth/websso/oidc"
)

// handleLogin begins an authorization code flow: it creates a single-use
// Request bound to this browser, redirects the user agent to the provider's
// authorization endpoint and remembers the originally requested URL for
// after the flow.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := s.browserSession(r)
	returnTo, _ := sess.Values[keyReturnTo].(string)

	req, err := oidc.NewRequest(s.loginExpiry, externalOrigin(r)+callbackPath, returnTo)
	if err != nil {
		s.logger.Error("unable to create login request", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	authURL, err := s.provider.AuthURL(r.Context(), req)
	if err != nil {
		s.logger.Error("unable to build authorization URL", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// the cookie points at the one attempt considered valid for this
	// browser; beginning a new login supersedes any earlier attempt
	s.logins.Add(req)
	sess.Values[keyLogin] = req.State()
	delete(sess.Values, keyReturnTo)
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("unable to save browser cookie", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	s.logger.Debug("redirecting to provider", "state", req.State())
	http.Redirect(w, r, authURL, http.StatusFound)
}
