package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/auth"
)

type loginBody struct {
	AuthChain  auth.AuthChain `json:"auth_chain"`
	Identifier struct {
		Type string `json:"type"`
		User string `json:"user"`
	} `json:"identifier"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

// LoginHandler serves the synapse login exchange: it verifies the auth
// chain over the timestamp and issues a bearer token for the legacy
// contract.
func (s *Service) LoginHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+socialnet.LoginPath, s.handleLogin)
	mux.HandleFunc("POST "+socialnet.LogoutPath, s.handleLogout)
	return mux
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeLoginError(w, http.StatusBadRequest, "M_NOT_JSON", err.Error())
		return
	}
	if body.Type != socialnet.LoginType || body.Identifier.Type != socialnet.LoginIdentifierType {
		writeLoginError(w, http.StatusBadRequest, "M_UNKNOWN", fmt.Sprintf("unsupported login type %q", body.Type))
		return
	}

	owner, err := auth.VerifyAuthChain(body.AuthChain, body.Timestamp, s.cfg.Now())
	if err != nil {
		writeLoginError(w, http.StatusForbidden, "M_FORBIDDEN", err.Error())
		return
	}
	if !strings.EqualFold(owner, body.Identifier.User) {
		writeLoginError(w, http.StatusForbidden, "M_FORBIDDEN", "auth chain does not belong to the user")
		return
	}

	token := uuid.NewString()
	s.IssueToken(owner, token)
	s.logger.Debug("issued synapse token", zap.String("address", normalize(owner)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": token,
		"user_id":      "@" + normalize(owner) + ":mock",
	})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !s.RevokeToken(token) {
		writeLoginError(w, http.StatusUnauthorized, "M_UNKNOWN_TOKEN", "unrecognised access token")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("{}"))
}

func writeLoginError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"errcode": code, "error": message})
}
