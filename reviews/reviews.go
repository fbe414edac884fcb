// Package reviews handles product reviews and keeps each product's rating current.
package reviews

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/db"
	"storefront/logger"
	"storefront/middleware"
	"storefront/models"
	"storefront/mq"
	"storefront/utils"
)

type Store interface {
	AddReview(ctx context.Context, productID primitive.ObjectID, r models.Review) error
}

// Invalidator drops cached copies of a product.
type Invalidator interface {
	Invalidate(ctx context.Context, productID primitive.ObjectID)
}

type Service struct {
	store  Store
	cache  Invalidator
	events *mq.Emitter
	log    *logger.Logger
}

func NewService(store Store, cache Invalidator, events *mq.Emitter, log *logger.Logger) *Service {
	return &Service{store: store, cache: cache, events: events, log: log}
}

type createRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,notblank"`
}

// Add records a review by user. One review per user per product.
func (s *Service) Add(ctx context.Context, productID primitive.ObjectID, user *models.User, rating int, comment string) error {
	now := time.Now()
	review := models.Review{
		ID:        primitive.NewObjectID(),
		User:      user.ID,
		Name:      user.Name,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.AddReview(ctx, productID, review)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return utils.NotFound("Product not found")
	case errors.Is(err, models.ErrAlreadyReviewed):
		return utils.Conflict("You've already reviewed this product")
	case err != nil:
		return utils.Internal("Could not save review", err)
	}

	s.cache.Invalidate(ctx, productID)
	s.events.Emit(ctx, mq.ReviewAdded, "product", productID.Hex(), user.ID.Hex())
	s.log.Info("review added", "product_id", productID.Hex(), "user_id", user.ID.Hex(), "rating", rating)
	return nil
}

// Create handles POST /api/products/:id/reviews
func (s *Service) Create(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	productID, err := utils.ParseObjectID(ps.ByName("id"), "Product not found")
	if err != nil {
		return err
	}
	var req createRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return err
	}
	user, _ := middleware.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.Add(ctx, productID, user, req.Rating, strings.TrimSpace(req.Comment)); err != nil {
		return err
	}
	utils.RespondWithMessage(w, http.StatusCreated, "You've successfully left a review.")
	return nil
}
