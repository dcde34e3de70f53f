package handler

import (
	"net/http"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Profile & addresses (signed-in users)
// ============================================================

func getProfileHandler(profiles *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := profiles.Get(r.Context(), IdentityFromContext(r.Context()))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func updateProfileHandler(profiles *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.UpdateProfileRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		p, err := profiles.Update(r.Context(), IdentityFromContext(r.Context()), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func listAddressesHandler(addresses *service.AddressService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := addresses.List(r.Context(), IdentityFromContext(r.Context()).UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"addresses": list})
	}
}

func createAddressHandler(addresses *service.AddressService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.AddressRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		a, err := addresses.Create(r.Context(), IdentityFromContext(r.Context()).UserID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func updateAddressHandler(addresses *service.AddressService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.AddressRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		a, err := addresses.Update(r.Context(), IdentityFromContext(r.Context()).UserID, chi.URLParam(r, "id"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func deleteAddressHandler(addresses *service.AddressService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := addresses.Delete(r.Context(), IdentityFromContext(r.Context()).UserID, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setDefaultAddressHandler(addresses *service.AddressService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := addresses.SetDefault(r.Context(), IdentityFromContext(r.Context()).UserID, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// ============================================================
// Admin dashboard
// ============================================================

func adminStatsHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := admin.Stats(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func adminMetricsHandler(admin *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, admin.Metrics())
	}
}
