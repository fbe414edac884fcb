package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrAlreadyReviewed = errors.New("product already reviewed by user")

type Review struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	User      primitive.ObjectID `json:"user" bson:"user"`
	Name      string             `json:"name" bson:"name"`
	Rating    int                `json:"rating" bson:"rating"`
	Comment   string             `json:"comment" bson:"comment"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type Product struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	User         primitive.ObjectID `json:"user" bson:"user"`
	Name         string             `json:"name" bson:"name"`
	Image        string             `json:"image" bson:"image"`
	Brand        string             `json:"brand" bson:"brand"`
	Category     string             `json:"category" bson:"category"`
	Description  string             `json:"description" bson:"description"`
	Reviews      []Review           `json:"reviews" bson:"reviews"`
	Rating       float64            `json:"rating" bson:"rating"`
	NumReviews   int                `json:"numReviews" bson:"numReviews"`
	Price        float64            `json:"price" bson:"price"`
	CountInStock int                `json:"countInStock" bson:"countInStock"`
	IsActive     bool               `json:"isActive" bson:"isActive"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// NewSampleProduct is what an admin gets from "create product" before editing it.
func NewSampleProduct(owner primitive.ObjectID, now time.Time) *Product {
	return &Product{
		User:        owner,
		Name:        "Sample Name",
		Image:       "/images/sample.jpg",
		Brand:       "Sample Brand",
		Category:    "Sample Category",
		Description: "Sample Description",
		Reviews:     []Review{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasReviewFrom reports whether user already reviewed the product.
func (p *Product) HasReviewFrom(user primitive.ObjectID) bool {
	for _, r := range p.Reviews {
		if r.User == user {
			return true
		}
	}
	return false
}

// AddReview appends r and recomputes numReviews and rating.
// One review per user: a second one returns ErrAlreadyReviewed and leaves p untouched.
func (p *Product) AddReview(r Review) error {
	if p.HasReviewFrom(r.User) {
		return ErrAlreadyReviewed
	}
	p.Reviews = append(p.Reviews, r)
	p.NumReviews = len(p.Reviews)

	total := 0
	for _, rv := range p.Reviews {
		total += rv.Rating
	}
	p.Rating = float64(total) / float64(len(p.Reviews))
	return nil
}
