package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/service"
)

type CatalogHandler struct {
	catalog CatalogService
	log     *slog.Logger
}

func NewCatalogHandler(catalog CatalogService, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, log: log}
}

type ShopOpenRequestDTO struct {
	IsOpen *bool `json:"is_open"`
}

// GET /api/locations
func (h *CatalogHandler) Locations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.Locations())
}

// GET /api/shops?district=&taluk=&village_city=
func (h *CatalogHandler) ListShops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shops, err := h.catalog.ListShops(r.Context(), domain.Location{
		District:    q.Get("district"),
		Taluk:       q.Get("taluk"),
		VillageCity: q.Get("village_city"),
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(shops))
}

// POST /api/shops
func (h *CatalogHandler) CreateShop(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in service.ShopInput
	if !decodeJSON(w, r, &in) {
		return
	}
	shop, err := h.catalog.CreateShop(r.Context(), actor, in)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, shop)
}

// GET /api/shops/my
func (h *CatalogHandler) MyShops(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	shops, err := h.catalog.MyShops(r.Context(), actor)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(shops))
}

// PATCH /api/shops/{shop_id}/open
func (h *CatalogHandler) SetShopOpen(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ShopOpenRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsOpen == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "is_open is required")
		return
	}
	shop, err := h.catalog.SetShopOpen(r.Context(), actor, chi.URLParam(r, "shop_id"), *req.IsOpen)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, shop)
}

// GET /api/shops/{shop_id}/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), chi.URLParam(r, "shop_id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(products))
}

// POST /api/shops/{shop_id}/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in service.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	product, err := h.catalog.CreateProduct(r.Context(), actor, chi.URLParam(r, "shop_id"), in)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// GET /api/products/search?query=&district=&taluk=&category=
func (h *CatalogHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.catalog.SearchProducts(r.Context(), domain.ProductQuery{
		Text:     q.Get("query"),
		District: q.Get("district"),
		Taluk:    q.Get("taluk"),
		Category: q.Get("category"),
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(products))
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
