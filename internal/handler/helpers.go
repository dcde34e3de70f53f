package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the body into dst and validates it. An empty body is
// accepted when allowEmpty is set, leaving dst at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &domain.ErrValidation{Field: "body", Message: "request body too large or unreadable"}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if !allowEmpty {
			return &domain.ErrValidation{Field: "body", Message: "request body is required"}
		}
	} else if err := json.Unmarshal(body, dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return validateStruct(dst)
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = service.DefaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= service.MaxPageSize {
			pageSize = ps
		}
	}
	return
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden
	var conflict *domain.ErrConflict
	var duplicate *domain.ErrDuplicate
	var insufficientStock *domain.ErrInsufficientStock
	var paymentRejected *domain.ErrPaymentRejected
	var external *domain.ErrExternalService
	var circuitOpen *domain.ErrCircuitOpen

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, unauthorized.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, forbidden.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &duplicate):
		logger.Debug("duplicate resource", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, duplicate.Error())
	case errors.As(err, &insufficientStock):
		logger.Warn("insufficient stock",
			zap.String("product_id", insufficientStock.ProductID),
			zap.Int("available", insufficientStock.Available),
			zap.Int("requested", insufficientStock.Requested),
		)
		writeError(w, http.StatusUnprocessableEntity, insufficientStock.Error())
	case errors.As(err, &paymentRejected):
		logger.Warn("payment rejected", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, paymentRejected.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, circuitOpen.Error())
	case errors.As(err, &external):
		logger.Error("upstream failure", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream service error ["+external.Service+"]")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
