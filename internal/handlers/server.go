// Package handlers provides HTTP handlers for API endpoints
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campus-locator/internal/auth"
	"campus-locator/internal/models"
	"campus-locator/internal/services"
)

// Config holds the token settings of the HTTP API
type Config struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

// Server exposes the services over HTTP
type Server struct {
	cfg         Config
	accounts    *services.AccountService
	gate        *services.ApprovalGate
	sessions    *services.CheckInSessions
	locator     *services.Locator
	revocations *auth.Revocations
	validate    *validator.Validate
}

// NewServer creates the HTTP server
func NewServer(
	cfg Config,
	accounts *services.AccountService,
	gate *services.ApprovalGate,
	sessions *services.CheckInSessions,
	locator *services.Locator,
) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Server{
		cfg:         cfg,
		accounts:    accounts,
		gate:        gate,
		sessions:    sessions,
		locator:     locator,
		revocations: auth.NewRevocations(),
		validate:    validator.New(),
	}
}

// Router builds the chi router with every route of the API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignUp)
		r.Post("/auth/signin", s.handleSignIn)
		r.With(s.authMiddleware).Post("/auth/signout", s.handleSignOut)
		r.With(s.authMiddleware).Get("/me", s.handleMe)

		r.Get("/rooms/{code}", s.handleRoom)
		r.Get("/rooms/{code}/qr", s.handleRoomQR)

		r.Route("/checkin", func(r chi.Router) {
			r.Use(s.authMiddleware, s.requireRole(models.RoleTeacher))
			r.Get("/", s.handleCheckInState)
			r.Post("/activate", s.handleActivate)
			r.Post("/decode", s.handleDecode)
			r.Post("/confirm", s.handleConfirm)
			r.Post("/decline", s.handleDecline)
			r.Post("/scan-again", s.handleScanAgain)
			r.Post("/cancel", s.handleCancel)
			r.Get("/history", s.handleHistory)
			r.Delete("/history", s.handleClearHistory)
		})

		r.Route("/teachers", func(r chi.Router) {
			r.Use(s.authMiddleware, s.requireRole(models.RoleStudent))
			r.Get("/", s.handleListTeachers)
			r.Get("/stream", s.handleTeacherStream)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authMiddleware, s.requireRole(models.RoleAdmin))
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/approvals", s.handleApprovals)
			r.Get("/users", s.handleListUsers)
			r.Patch("/users/{role}/{id}", s.handleSetStatus)
			r.Delete("/users/{role}/{id}", s.handleDeleteUser)
		})
	})

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", services.UserMessage(models.ErrNoSession))
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil || s.revocations.Revoked(claims) {
			writeError(w, http.StatusUnauthorized, "invalid_token", services.UserMessage(models.ErrNoSession))
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole runs the approval gate on every request to a role-specific area
func (s *Server) requireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "missing_token", services.UserMessage(models.ErrNoSession))
				return
			}

			account, err := s.gate.Require(r.Context(), claims.UserID, role)
			if err != nil {
				writeServiceError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), accountKey{}, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type claimsKey struct{}

type accountKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

func accountFromContext(ctx context.Context) *models.Account {
	account, _ := ctx.Value(accountKey{}).(*models.Account)
	return account
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// decodeAndValidate reads a JSON body into out and runs its validate tags
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Please fill in all fields"
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "required_if":
		return "Please fill in all fields"
	case "email":
		return "Please enter a valid email address"
	case "min":
		return "Password must be at least " + fe.Param() + " characters"
	case "oneof":
		return "Invalid " + field
	default:
		return "Invalid " + field
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Remaining int    `json:"remaining,omitempty"`
	Redirect  string `json:"redirect,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps a service error to its status, code and user message
func writeServiceError(w http.ResponseWriter, err error) {
	resp := errorResponse{Message: services.UserMessage(err)}
	status := http.StatusInternalServerError

	var cooldown *models.CooldownError
	var access *models.AccessError
	var write *models.WriteError

	switch {
	case errors.As(err, &cooldown):
		status, resp.Error, resp.Remaining = http.StatusTooManyRequests, "cooldown", cooldown.Remaining
	case errors.As(err, &access):
		resp.Error, resp.Redirect = string(access.Reason), "/signin"
		status = http.StatusForbidden
		if access.Reason == models.ReasonNotAuthenticated {
			status = http.StatusUnauthorized
		}
	case errors.As(err, &write):
		status, resp.Error = http.StatusBadGateway, "write_failure"
	case errors.Is(err, models.ErrPermissionDenied):
		status, resp.Error = http.StatusForbidden, "permission_denied"
	case errors.Is(err, models.ErrInvalidCredentials):
		status, resp.Error = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, models.ErrAccountExists):
		status, resp.Error = http.StatusConflict, "account_exists"
	case errors.Is(err, models.ErrInvalidTransition):
		status, resp.Error = http.StatusConflict, "invalid_transition"
	case errors.Is(err, models.ErrInvalidRole):
		status, resp.Error = http.StatusBadRequest, "invalid_role"
	case errors.Is(err, models.ErrNoSession):
		status, resp.Error = http.StatusUnauthorized, "no_session"
	case errors.Is(err, models.ErrNotFound):
		status, resp.Error = http.StatusNotFound, "not_found"
	default:
		resp.Error = "internal"
		log.Printf("❌ Request failed: %v", err)
	}
	writeJSON(w, status, resp)
}
