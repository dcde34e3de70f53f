package handler

import (
	"net/http"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Auth: proxied to Supabase GoTrue
// ============================================================

func signupHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.SignupRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		sess, err := authSvc.SignUp(r.Context(), IdentityFromContext(r.Context()), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func loginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.LoginRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		sess, err := authSvc.Login(r.Context(), IdentityFromContext(r.Context()), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func refreshHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.RefreshRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		sess, err := authSvc.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func currentUserHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := authSvc.CurrentUser(r.Context(), IdentityFromContext(r.Context()))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func logoutHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := authSvc.Logout(r.Context(), IdentityFromContext(r.Context())); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
