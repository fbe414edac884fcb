package products

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/db"
	"storefront/logger"
	"storefront/middleware"
	"storefront/models"
	"storefront/utils"
)

const (
	listPageSize   = 8
	topDefaultSize = 3
	cacheTTL       = 5 * time.Minute
	topCacheKey    = "products:top"
)

// Cache is the read-through cache for single products and the top listing.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Handler struct {
	store Store
	cache Cache
	log   *logger.Logger
}

func NewHandler(store Store, cache Cache, log *logger.Logger) *Handler {
	return &Handler{store: store, cache: cache, log: log}
}

func cacheKey(id primitive.ObjectID) string { return "product:" + id.Hex() }

// Invalidate drops cached copies of the product and the top listing.
func (h *Handler) Invalidate(ctx context.Context, id primitive.ObjectID) {
	if err := h.cache.Del(ctx, cacheKey(id), topCacheKey); err != nil {
		h.log.Warn("product cache invalidation failed", "product_id", id.Hex(), "err", err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) error {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	page := utils.ParsePage(r, listPageSize)
	list, total, err := h.store.List(ctx, Query{Keyword: r.URL.Query().Get("keyword"), ActiveOnly: activeOnly}, page)
	if err != nil {
		return utils.Internal("Could not list products", err)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.Paged[models.Product]{Data: list, Page: page.Number, Pages: page.Pages(total)})
	return nil
}

// List handles GET /api/products: active products only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	return h.list(w, r, true)
}

// ListAll handles GET /api/products/all (admin).
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	return h.list(w, r, false)
}

// Top handles GET /api/products/top
func (h *Handler) Top(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	size, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || size < 1 || size > 100 {
		size = topDefaultSize
	}

	var list []models.Product
	cacheable := size == topDefaultSize
	if cacheable {
		if hit, err := h.cache.GetJSON(ctx, topCacheKey, &list); err == nil && hit {
			utils.RespondWithJSON(w, http.StatusOK, list)
			return nil
		}
	}

	list, err = h.store.Top(ctx, size)
	if err != nil {
		return utils.Internal("Could not load top products", err)
	}
	if cacheable {
		if err := h.cache.SetJSON(ctx, topCacheKey, list, cacheTTL); err != nil {
			h.log.Warn("cache write failed", "key", topCacheKey, "err", err)
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
	return nil
}

func (h *Handler) load(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := utils.ParseObjectID(rawID, "Product not found")
	if err != nil {
		return nil, err
	}
	p, err := h.store.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.NotFound("Product not found")
	}
	if err != nil {
		return nil, utils.Internal("Could not load product", err)
	}
	return p, nil
}

// Get handles GET /api/products/:id
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := utils.ParseObjectID(ps.ByName("id"), "Product not found")
	if err != nil {
		return err
	}

	var cached models.Product
	if hit, err := h.cache.GetJSON(ctx, cacheKey(id), &cached); err == nil && hit {
		utils.RespondWithJSON(w, http.StatusOK, cached)
		return nil
	}

	p, err := h.load(ctx, id.Hex())
	if err != nil {
		return err
	}
	if err := h.cache.SetJSON(ctx, cacheKey(id), p, cacheTTL); err != nil {
		h.log.Warn("cache write failed", "key", cacheKey(id), "err", err)
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
	return nil
}

// Create handles POST /api/products (admin): a placeholder product to be edited.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	user, _ := middleware.CurrentUser(r)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p := models.NewSampleProduct(user.ID, time.Now())
	if err := h.store.Create(ctx, p); err != nil {
		return utils.Internal("Could not create product", err)
	}
	h.log.Info("product created", "product_id", p.ID.Hex(), "admin_id", user.ID.Hex())
	utils.RespondWithJSON(w, http.StatusCreated, p)
	return nil
}

type updateRequest struct {
	Name         string  `json:"name" validate:"required"`
	Price        float64 `json:"price" validate:"gte=0"`
	Description  string  `json:"description"`
	Image        string  `json:"image"`
	Brand        string  `json:"brand"`
	Category     string  `json:"category"`
	CountInStock int     `json:"countInStock" validate:"gte=0"`
	IsActive     bool    `json:"isActive"`
}

// Update handles PUT /api/products/:id (admin). Every editable field is replaced.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	var req updateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.load(ctx, ps.ByName("id"))
	if err != nil {
		return err
	}
	p.Name = req.Name
	p.Price = req.Price
	p.Description = req.Description
	p.Image = req.Image
	p.Brand = req.Brand
	p.Category = req.Category
	p.CountInStock = req.CountInStock
	p.IsActive = req.IsActive

	if err := h.store.Update(ctx, p); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return utils.NotFound("Product not found")
		}
		return utils.Internal("Could not update product", err)
	}
	h.Invalidate(ctx, p.ID)
	utils.RespondWithJSON(w, http.StatusCreated, p)
	return nil
}

// Delete handles DELETE /api/products/:id (admin)
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := utils.ParseObjectID(ps.ByName("id"), "Product not found")
	if err != nil {
		return err
	}
	if err := h.store.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return utils.NotFound("Product not found")
		}
		return utils.Internal("Could not delete product", err)
	}
	h.Invalidate(ctx, id)
	utils.RespondWithMessage(w, http.StatusOK, "Product removed")
	return nil
}
