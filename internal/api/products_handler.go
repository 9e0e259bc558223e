package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crewkit/crewkit/internal/catalog"
)

// productsHandler groups catalog HTTP handlers.
type productsHandler struct {
	catalog *catalog.Store
}

func newProductsHandler(store *catalog.Store) *productsHandler {
	return &productsHandler{catalog: store}
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *productsHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateProductInput
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	p, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		writeFault(w, r, err)
		return
	}

	auditLog(r, "product.create", "product", p.ID, "product_name", p.ProductName)
	writeJSON(w, http.StatusCreated, p)
}

// ListProducts handles GET /api/v1/admin/products.
func (h *productsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeFault(w, r, err)
		return
	}
	if products == nil {
		products = []*catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// GetProduct handles GET /api/v1/admin/products/{productID}.
func (h *productsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /api/v1/admin/products/{productID}.
func (h *productsHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		writeFault(w, r, err)
		return
	}

	auditLog(r, "product.delete", "product", id)
	w.WriteHeader(http.StatusNoContent)
}
