package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/services/auth"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LoginRecorder counts login attempts, e.g. *metrics.Metrics.
type LoginRecorder interface {
	RecordLogin(result string)
}

// AuthHandler handles login, registration and the caller's own account
type AuthHandler struct {
	auth      *auth.Service
	committer *Committer
	recorder  LoginRecorder
}

// NewAuthHandler creates a new auth handler. recorder may be nil.
func NewAuthHandler(authService *auth.Service, committer *Committer, recorder LoginRecorder) *AuthHandler {
	return &AuthHandler{
		auth:      authService,
		committer: committer,
		recorder:  recorder,
	}
}

// SetupAuthRoutes sets up auth routes. Login and register are public.
func (h *AuthHandler) SetupAuthRoutes(router *mux.Router, authMW mux.MiddlewareFunc) {
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/auth/register", h.Register).Methods("POST")
	router.Handle("/auth/me", authMW(http.HandlerFunc(h.Me))).Methods("GET")
	router.Handle("/auth/change-password", authMW(http.HandlerFunc(h.ChangePassword))).Methods("POST")
}

// Login godoc
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body auth.LoginRequest true "Email and password"
// @Success 200 {object} auth.Session
// @Failure 400 {object} map[string]string "Missing fields"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Failure 403 {object} map[string]string "Account suspended"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.auth.Login(r.Context(), &req)
	h.recordLogin(err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p := domain.Principal{UserID: session.User.ID, CustomerID: session.User.CustomerID, Role: session.User.Role}
	if err := h.committer.RunAs(r.Context(), p, clientIP(r), r.UserAgent(), func(ctx context.Context, u *Unit) error {
		u.Audit(domain.ActionLogin, "user", p.UserID, nil)
		return nil
	}); err != nil {
		// the session is already issued
		logger.Warn(r.Context(), "failed to record login", zap.String("user_id", p.UserID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, envelope{
		"message":      "login successful",
		"access_token": session.AccessToken,
		"user":         session.User,
		"customer":     session.Customer,
	})
}

func (h *AuthHandler) recordLogin(err error) {
	if h.recorder == nil {
		return
	}
	result := "success"
	if err != nil {
		result = domain.KindOf(err).String()
	}
	h.recorder.RecordLogin(result)
}

// Register godoc
// @Summary Register a new customer account and its admin user
// @Tags auth
// @Accept json
// @Produce json
// @Param registration body auth.RegisterRequest true "Registration"
// @Success 201 {object} auth.Session
// @Failure 400 {object} map[string]string "Missing fields"
// @Failure 409 {object} map[string]string "Email already registered"
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"message":      "account created successfully",
		"access_token": session.AccessToken,
		"user":         session.User,
		"customer":     session.Customer,
	})
}

// Me godoc
// @Summary Current user and customer
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	user, customer, err := h.auth.Me(r.Context(), &p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"user": user, "customer": customer})
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Tags auth
// @Accept json
// @Produce json
// @Param body body auth.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Wrong current password or missing fields"
// @Router /api/auth/change-password [post]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p := principal(r)
	if err := h.auth.ChangePassword(r.Context(), &p, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "password updated successfully"})
}
