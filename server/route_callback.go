package server

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/webb-auth/websso/oidc"
)

// handleCallback completes the authorization code flow: it correlates the
// provider's response with the pending attempt for this browser, exchanges
// the code for tokens, verifies the id_token and establishes the session.
//
// The pending attempt is single use and is discarded whether or not the
// callback succeeds, so a replayed callback always misses.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := s.browserSession(r)

	pendingState, _ := sess.Values[keyLogin].(string)
	delete(sess.Values, keyLogin)

	if pendingState == "" {
		// forged or directly navigated callback: no login was ever begun
		// from this browser
		s.authFailed(w, r, sess, oidc.ErrNoPendingAuthorization)
		return
	}
	req, ok := s.logins.Take(pendingState)
	if !ok {
		s.authFailed(w, r, sess, oidc.ErrNoPendingAuthorization)
		return
	}

	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		s.logger.Warn("provider returned authorization error",
			"error", errCode,
			"description", q.Get("error_description"),
		)
		s.authFailed(w, r, sess, oidc.ErrTokenExchange)
		return
	}

	_, claims, err := s.provider.Exchange(r.Context(), req, q.Get("state"), q.Get("code"))
	if err != nil {
		s.authFailed(w, r, sess, err)
		return
	}

	id, err := s.sessions.Establish(r.Context(), claims)
	if err != nil {
		// failing to persist a fresh session must not claim success
		s.logger.Error("unable to establish session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sess.Values[keySessionID] = id
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("unable to save browser cookie", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	s.logger.Info("authenticated", "subject", claims.Subject)
	http.Redirect(w, r, req.ReturnTo(), http.StatusFound)
}

// authFailed turns any per-request authentication failure into a safe
// redirect back into the login flow.  The reason is logged server side and
// never surfaces to the client.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, sess *sessions.Session, err error) {
	s.logger.Warn("authentication failed", "error", err)
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("unable to save browser cookie", "error", err)
	}
	http.Redirect(w, r, loginPath, http.StatusFound)
}
