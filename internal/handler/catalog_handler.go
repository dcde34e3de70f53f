package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"
	"github.com/naijastore/naijastore-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Catalog: products and categories
// ============================================================

// parseProductFilter reads the storefront listing query.
func parseProductFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	f := domain.ProductFilter{
		CategorySlug: strings.TrimSpace(q.Get("category")),
		Search:       strings.TrimSpace(q.Get("search")),
		Sort:         q.Get("sort"),
	}
	f.Page, f.PageSize = parsePagination(r)

	if v := q.Get("featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &domain.ErrValidation{Field: "featured", Message: "must be true or false"}
		}
		f.Featured = &b
	}
	if v := q.Get("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &domain.ErrValidation{Field: "in_stock", Message: "must be true or false"}
		}
		f.InStockOnly = b
	}
	for _, p := range []struct {
		name string
		dst  **float64
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return f, &domain.ErrValidation{Field: p.name, Message: "must be a non-negative number"}
		}
		*p.dst = &n
	}
	return f, nil
}

func listProductsHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseProductFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		page, err := catalog.ListProducts(r.Context(), f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func getProductHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.GetProduct")
		defer span.End()

		key := chi.URLParam(r, "idOrSlug")
		span.SetAttributes(attribute.String("product.key", key))

		p, err := catalog.GetProduct(ctx, key)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func listCategoriesHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := catalog.ListCategories(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
	}
}

func getCategoryHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := catalog.GetCategory(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// --- Admin ---

func adminListProductsHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseProductFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		f.IncludeInactive = true
		page, err := catalog.ListProducts(r.Context(), f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func adminCreateProductHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.ProductInput
		if err := decodeJSON(w, r, &in, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		p, err := catalog.CreateProduct(r.Context(), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func adminUpdateProductHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.ProductInput
		if err := decodeJSON(w, r, &in, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		p, err := catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func adminDeleteProductHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func adminCreateCategoryHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.CategoryInput
		if err := decodeJSON(w, r, &in, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		c, err := catalog.CreateCategory(r.Context(), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func adminUpdateCategoryHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.CategoryInput
		if err := decodeJSON(w, r, &in, false); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		c, err := catalog.UpdateCategory(r.Context(), chi.URLParam(r, "id"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func adminDeleteCategoryHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
