package server

import (
	"net/http"
)

// handleLogout destroys the local session and then redirects the user agent
// to the provider's end-session endpoint so the provider-side session is
// terminated as well.  Local destruction is unconditional: even when the
// provider redirect cannot be built, the user is never left locally logged
// in.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.browserSession(r)

	if id, _ := sess.Values[keySessionID].(string); id != "" {
		if err := s.sessions.Destroy(r.Context(), id); err != nil {
			s.logger.Error("unable to destroy session", "error", err)
		}
	}

	// drop the browser cookie regardless of what it held
	delete(sess.Values, keySessionID)
	delete(sess.Values, keyLogin)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("unable to expire browser cookie", "error", err)
	}

	endSessionURL, err := s.provider.EndSessionURL(externalOrigin(r))
	if err != nil {
		s.logger.Warn("unable to build end-session URL", "error", err)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, endSessionURL, http.StatusFound)
}
