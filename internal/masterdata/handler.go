package masterdata

import (
	"github.com/go-chi/chi/v5"

	"github.com/depot-ops/depot-ops/internal/masterdata/branches"
	"github.com/depot-ops/depot-ops/internal/masterdata/products"
)

// Handler groups the master data endpoints under one mount point.
type Handler struct {
	branches *branches.Handler
	products *products.Handler
}

// NewHandler builds Handler instance.
func NewHandler(branchHandler *branches.Handler, productHandler *products.Handler) *Handler {
	return &Handler{branches: branchHandler, products: productHandler}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.branches != nil {
		r.Route("/branches", h.branches.MountRoutes)
	}
	if h.products != nil {
		r.Route("/products", h.products.MountRoutes)
	}
}
