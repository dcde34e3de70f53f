package handler

import (
	"net/http"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/service"
	"github.com/naijastore/naijastore-api/internal/session"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Guest sessions and carts
// ============================================================

// createSessionHandler issues a guest session id. The fingerprint body is
// optional; request headers fill in what the client did not send.
func createSessionHandler(sessions *session.Manager, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fp domain.Fingerprint
		if err := decodeJSON(w, r, &fp, true); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if fp.UserAgent == "" {
			fp.UserAgent = r.UserAgent()
		}
		if fp.AcceptLanguage == "" {
			fp.AcceptLanguage = r.Header.Get("Accept-Language")
		}
		if fp.UABrands == "" {
			fp.UABrands = r.Header.Get("Sec-CH-UA")
		}
		if fp.UAPlatform == "" {
			fp.UAPlatform = r.Header.Get("Sec-CH-UA-Platform")
		}
		if fp.UAMobile == "" {
			fp.UAMobile = r.Header.Get("Sec-CH-UA-Mobile")
		}

		gs, err := sessions.Issue(fp)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set(session.HeaderSessionID, gs.SessionID)
		writeJSON(w, http.StatusCreated, gs)
	}
}

func getCartHandler(carts *service.CartService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cart, err := carts.Get(r.Context(), IdentityFromContext(r.Context()).Owner())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	}
}

func addCartItemHandler(carts *service.CartService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.AddCartItemRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		cart, err := carts.Add(r.Context(), IdentityFromContext(r.Context()).Owner(), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	}
}

func updateCartItemHandler(carts *service.CartService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.UpdateCartItemRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		owner := IdentityFromContext(r.Context()).Owner()
		cart, err := carts.UpdateQuantity(r.Context(), owner, chi.URLParam(r, "itemId"), req.Quantity)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	}
}

func removeCartItemHandler(carts *service.CartService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := IdentityFromContext(r.Context()).Owner()
		cart, err := carts.Remove(r.Context(), owner, chi.URLParam(r, "itemId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cart)
	}
}

func clearCartHandler(carts *service.CartService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := carts.Clear(r.Context(), IdentityFromContext(r.Context()).Owner()); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type mergeCartResponse struct {
	Merged int          `json:"merged"`
	Cart   *domain.Cart `json:"cart"`
}

// mergeCartHandler folds the X-Session-ID guest cart into the signed-in
// user's cart.
func mergeCartHandler(carts *service.CartService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id.SessionID == "" {
			handleServiceError(w, &domain.ErrValidation{Field: session.HeaderSessionID, Message: "guest session header is required"}, logger)
			return
		}
		n, err := carts.Merge(r.Context(), id.UserID, id.SessionID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		cart, err := carts.Get(r.Context(), id.Owner())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, mergeCartResponse{Merged: n, Cart: cart})
	}
}
