// Package catalog serves the public product listing, admin product creation
// and the display cache.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/roastdirect/internal/auth"
	"github.com/joao-fontenele/roastdirect/internal/domain"
	"github.com/joao-fontenele/roastdirect/internal/pricing"
)

// Products is the slice of store.ProductStore the catalog needs.
type Products interface {
	ListActive(ctx context.Context) ([]domain.Product, error)
	Insert(ctx context.Context, product *domain.Product) error
}

type Handler struct {
	products Products
	find     pricing.ProductFinder
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler lists from and inserts into products, and serves single products
// through find, which may be a DisplayCache.
func NewHandler(products Products, find pricing.ProductFinder, logger *slog.Logger) *Handler {
	return &Handler{
		products: products,
		find:     find,
		logger:   logger,
		now:      time.Now,
	}
}

// Register mounts the catalog routes. Reads are public; adding a product
// goes through authn and needs the admin role.
func (h *Handler) Register(mux *http.ServeMux, authn func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/products", h.HandleList)
	mux.HandleFunc("GET /api/products/{id}", h.HandleGet)
	mux.HandleFunc("POST /api/product/add_product", authn(auth.RequireRole(auth.RoleAdmin, h.HandleAddProduct)))
}

type listResponse struct {
	Count    int              `json:"count"`
	Products []domain.Product `json:"products"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, listResponse{Count: len(products), Products: products})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid product id format")
		return
	}

	product, err := h.find.Find(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if product == nil || !product.IsActive {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type addProductRequest struct {
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Price            *decimal.Decimal `json:"price"`
	RoastLevel       string           `json:"roast_level"`
	OriginCountry    string           `json:"origin_country"`
	Elevation        string           `json:"elevation"`
	InventoryCount   *int             `json:"inventory_count"`
	ImageURL         string           `json:"image_url"`
	FarmInfo         string           `json:"farm_info"`
	ProcessingMethod string           `json:"processing_method"`
	TastingNotes     []string         `json:"tasting_notes"`
}

// validate reports the first problem in field order.
func (req *addProductRequest) validate() error {
	required := []struct {
		field   string
		missing bool
	}{
		{"name", strings.TrimSpace(req.Name) == ""},
		{"description", strings.TrimSpace(req.Description) == ""},
		{"price", req.Price == nil},
		{"roast_level", strings.TrimSpace(req.RoastLevel) == ""},
		{"origin_country", strings.TrimSpace(req.OriginCountry) == ""},
		{"elevation", strings.TrimSpace(req.Elevation) == ""},
		{"inventory_count", req.InventoryCount == nil},
		{"farm_info", strings.TrimSpace(req.FarmInfo) == ""},
		{"processing_method", strings.TrimSpace(req.ProcessingMethod) == ""},
		{"tasting_notes", len(req.TastingNotes) == 0},
	}
	for _, r := range required {
		if r.missing {
			return domain.Validation("%s is required", r.field)
		}
	}
	if !domain.AmountInRange(*req.Price) {
		return domain.Validation("price must be positive and at most %s", domain.MaxAmount)
	}
	if *req.InventoryCount < 0 {
		return domain.Validation("inventory_count must not be negative")
	}
	return nil
}

type addProductResponse struct {
	Message   string `json:"message"`
	ProductID string `json:"product_id"`
}

func (h *Handler) HandleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now().UTC()
	product := &domain.Product{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		Price:            req.Price.Round(2),
		RoastLevel:       req.RoastLevel,
		OriginCountry:    req.OriginCountry,
		Elevation:        req.Elevation,
		InventoryCount:   *req.InventoryCount,
		ImageURL:         req.ImageURL,
		RoastDate:        now,
		FarmInfo:         req.FarmInfo,
		ProcessingMethod: req.ProcessingMethod,
		TastingNotes:     req.TastingNotes,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.products.Insert(r.Context(), product); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to add product", "error", err, "name", product.Name)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	id, _ := auth.FromContext(r.Context())
	h.logger.Info("product added", "product_id", product.ID, "by", id.UserID)
	h.writeJSON(w, http.StatusCreated, addProductResponse{Message: "Product added successfully", ProductID: product.ID})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
