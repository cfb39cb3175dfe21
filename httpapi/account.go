package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/middleware"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	UserID      string `json:"userId"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type updateUserInfoRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type changeEmailRequest struct {
	NewEmail string `json:"newEmail"`
}

// decodeJSON reads a single JSON object from the body. Failures are
// [goIdentity.ErrInvalidInput].
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", goIdentity.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %v", goIdentity.ErrInvalidInput, err)
	}
	return nil
}

func subject(r *http.Request) string {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p.Subject
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.engine.Register(r.Context(), req.FirstName, req.LastName, req.Email, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Registration successful. Please check your email to confirm your account.")
}

func (s *Server) confirmEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := s.engine.ConfirmEmail(r.Context(), q.Get("userId"), q.Get("token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Email confirmed!")
}

func (s *Server) resendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.ResendConfirmation(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Confirmation email sent.")
}

func (s *Server) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Password reset email sent.")
}

func (s *Server) passwordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.ConfirmPasswordReset(r.Context(), req.UserID, req.Token, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Password reset successful.")
}

func (s *Server) userInfo(w http.ResponseWriter, r *http.Request) {
	profile, err := s.engine.GetUserInfo(r.Context(), subject(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) updateUserInfo(w http.ResponseWriter, r *http.Request) {
	var req updateUserInfoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.engine.UpdateUserInfo(r.Context(), subject(r), req.FirstName, req.LastName); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "User info updated.")
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.ChangePassword(r.Context(), subject(r), req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Password changed successfully.")
}

func (s *Server) changeEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.RequestEmailChange(r.Context(), subject(r), req.NewEmail); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Confirmation email sent to your new address. Please verify to complete the change.")
}

func (s *Server) confirmEmailChange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := s.engine.ConfirmEmailChange(r.Context(), q.Get("userId"), q.Get("newEmail"), q.Get("token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, "Email successfully changed.")
}
