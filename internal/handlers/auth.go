package handlers

import (
	"net/http"

	"campus-locator/internal/auth"
	"campus-locator/internal/models"
	"campus-locator/internal/services"
)

type signUpResponse struct {
	Account *models.Account `json:"account"`
	Message string          `json:"message"`
}

type signInResponse struct {
	AccessToken string          `json:"accessToken"`
	Account     *models.Account `json:"account"`
	Redirect    string          `json:"redirect"`
}

type meResponse struct {
	Account *models.Account `json:"account"`
	Allowed bool            `json:"allowed"`
	Message string          `json:"message,omitempty"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	account, err := s.accounts.SignUp(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, signUpResponse{
		Account: account,
		Message: "Account created. Please wait for administrator approval.",
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	account, err := s.accounts.SignIn(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.TokenTTL, auth.Claims{
		UserID: account.ID,
		Role:   account.Role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{
		AccessToken: token,
		Account:     account,
		Redirect:    homeFor(account.Role),
	})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.accounts.SignOut(r.Context(), claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	s.revocations.Revoke(claims)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	account, err := s.accounts.FindAccount(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	access, err := s.gate.CheckAccess(r.Context(), account.ID, account.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := meResponse{Account: account, Allowed: access.Allowed}
	if !access.Allowed {
		resp.Message = services.UserMessage(access.Err(account.Role))
	}
	writeJSON(w, http.StatusOK, resp)
}

func homeFor(role models.Role) string {
	switch role {
	case models.RoleTeacher:
		return "/teacher"
	case models.RoleAdmin:
		return "/admin"
	default:
		return "/student"
	}
}
