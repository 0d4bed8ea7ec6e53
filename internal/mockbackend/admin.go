package mockbackend

import (
	"crypto/subtle"
	"net/http"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds admin.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(s.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(s.password)) == 1
	if !userOK || !passOK {
		AddLogField(r.Context(), "login", "rejected")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, exp, err := s.issueToken(creds.Username)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	now := s.now().UTC()
	s.adminMu.Lock()
	s.admin.LastLogin = &now
	a := s.admin
	s.adminMu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	AddLogField(r.Context(), "admin", a.Username)
	writeData(w, http.StatusOK, "Login successful", admin.LoginResult{AccessToken: token, Admin: a})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeData(w, http.StatusOK, "Logout successful", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.adminMu.Lock()
	a := s.admin
	s.adminMu.Unlock()
	if claims, ok := r.Context().Value(adminKey{}).(*Claims); ok && claims.Username != a.Username {
		writeError(w, http.StatusUnauthorized, "Unknown admin")
		return
	}
	writeData(w, http.StatusOK, "", a)
}

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", s.store.listPreferences())
}

func (s *Server) handleUpdatePreference(w http.ResponseWriter, r *http.Request) {
	var pref admin.NotificationPreference
	if err := decodeJSON(w, r, &pref); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if pref.Type == "" {
		writeError(w, http.StatusBadRequest, "Preference type is required")
		return
	}
	s.store.putPreference(pref)
	writeData(w, http.StatusOK, "Preference updated", pref)
}
