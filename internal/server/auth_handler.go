package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/types"
)

// handleLogin checks the officer badge and passcode and issues a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	if !s.checkCredentials(req.Badge, req.Passcode) {
		s.logger.Warn("failed login", zap.String("badge", req.Badge), zap.String("client", clientID(r)))
		s.errorFrom(w, &ErrInvalidCredentials{})
		return
	}

	token, expiresAt, err := s.deps.JWT.GenerateToken(req.Badge)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if s.deps.Preferences != nil {
		if err := s.deps.Preferences.SetLoggedIn(r.Context(), true); err != nil {
			s.logger.Warn("failed to persist login state", zap.Error(err))
		}
	}

	s.logger.Info("officer logged in", zap.String("badge", req.Badge))
	s.jsonResponse(w, http.StatusOK, types.LoginResponse{
		Badge:     req.Badge,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// checkCredentials runs the bcrypt comparison even when the badge is wrong.
func (s *Server) checkCredentials(badge, passcode string) bool {
	badgeOK := subtle.ConstantTimeCompare([]byte(badge), []byte(s.deps.Officer.Badge)) == 1
	passOK := s.deps.Passcodes != nil && s.deps.Passcodes.VerifyPasscode(passcode, s.deps.Officer.PasscodeHash)
	return badgeOK && passOK
}

// handleLogout clears the logged-in preference. Tokens stay valid until
// they expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Preferences != nil {
		if err := s.deps.Preferences.SetLoggedIn(r.Context(), false); err != nil {
			s.errorFrom(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
