package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope"`
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_request", ErrorDescription: "Malformed form body."})
		return
	}

	set, err := s.engine.Exchange(r.Context(), goIdentity.GrantRequest{
		GrantType:    goIdentity.GrantType(r.PostForm.Get("grant_type")),
		UserName:     r.PostForm.Get("username"),
		Password:     r.PostForm.Get("password"),
		RefreshToken: r.PostForm.Get("refresh_token"),
	})
	if err != nil {
		s.writeOAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  set.AccessToken,
		TokenType:    set.TokenType,
		ExpiresIn:    int64(set.ExpiresIn.Seconds()),
		RefreshToken: set.RefreshToken,
		IDToken:      set.IDToken,
		Scope:        strings.Join(set.Scopes, " "),
	})
}

func (s *Server) writeOAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, goIdentity.ErrUnsupportedGrant):
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "unsupported_grant_type", ErrorDescription: "Unsupported grant type."})
	case errors.Is(err, goIdentity.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_request", ErrorDescription: "Required parameters are missing."})
	case errors.Is(err, goIdentity.ErrForbidden):
		writeJSON(w, http.StatusForbidden, oauthError{Error: "access_denied", ErrorDescription: "The credentials or grant are invalid."})
	case errors.Is(err, goIdentity.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, oauthError{Error: "slow_down", ErrorDescription: "Too many requests. Please slow down."})
	default:
		s.log.Error(r.Context(), "token request failed",
			"error", err,
			"request_id", goIdentity.RequestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, oauthError{Error: "server_error"})
	}
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// logout accepts the refresh token as a refresh_token form field or a JSON
// refreshToken property. A missing or unknown token still logs out.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var token string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req logoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = req.RefreshToken
		}
	} else if err := r.ParseForm(); err == nil {
		token = r.PostForm.Get("refresh_token")
	}

	if err := s.engine.Logout(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Logged out.")
}
