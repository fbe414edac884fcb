package products

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/db"
	"storefront/models"
	"storefront/utils"
)

// Query narrows a product listing.
type Query struct {
	Keyword    string
	ActiveOnly bool
}

// Store persists products. Lookups return db.ErrNotFound on a miss.
type Store interface {
	List(ctx context.Context, q Query, page utils.Page) ([]models.Product, int64, error)
	Top(ctx context.Context, limit int) ([]models.Product, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// AddReview appends r unless r.User already reviewed the product, in which
	// case it returns models.ErrAlreadyReviewed.
	AddReview(ctx context.Context, id primitive.ObjectID, r models.Review) error
	DeleteAll(ctx context.Context) error
	InsertMany(ctx context.Context, list []models.Product) error
}

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{coll: database.Collection(db.ProductsCollection)}
}

func (s *MongoStore) filter(q Query) bson.M {
	f := bson.M{}
	if q.ActiveOnly {
		f["isActive"] = true
	}
	if q.Keyword != "" {
		f["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.Keyword), Options: "i"}
	}
	return f
}

func (s *MongoStore) List(ctx context.Context, q Query, page utils.Page) ([]models.Product, int64, error) {
	f := s.filter(q)
	total, err := s.coll.CountDocuments(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	cur, err := s.coll.Find(ctx, f, options.Find().SetSkip(page.Skip()).SetLimit(page.Limit()))
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	list := []models.Product{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}
	return list, total, nil
}

func (s *MongoStore) Top(ctx context.Context, limit int) ([]models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "rating", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.M{"isActive": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	list := []models.Product{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return list, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

func (s *MongoStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	found := make(map[primitive.ObjectID]models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	cur, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	var list []models.Product
	if err := cur.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	for _, p := range list {
		found[p.ID] = p
	}
	return found, nil
}

func (s *MongoStore) Create(ctx context.Context, p *models.Product) error {
	p.ID = primitive.NewObjectID()
	if p.Reviews == nil {
		p.Reviews = []models.Review{}
	}
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"name":         p.Name,
		"price":        p.Price,
		"description":  p.Description,
		"image":        p.Image,
		"brand":        p.Brand,
		"category":     p.Category,
		"countInStock": p.CountInStock,
		"isActive":     p.IsActive,
		"updatedAt":    p.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

// AddReview appends the review and recomputes numReviews and rating in one
// conditional update, so a user can never land two reviews on a product.
func (s *MongoStore) AddReview(ctx context.Context, id primitive.ObjectID, r models.Review) error {
	filter := bson.M{"_id": id, "reviews.user": bson.M{"$ne": r.User}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "reviews", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$reviews", bson.A{}}}},
				bson.A{bson.D{{Key: "$literal", Value: r}}},
			}}}},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "numReviews", Value: bson.D{{Key: "$size", Value: "$reviews"}}},
			{Key: "rating", Value: bson.D{{Key: "$avg", Value: "$reviews.rating"}}},
			{Key: "updatedAt", Value: r.CreatedAt},
		}}},
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("add review: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("add review: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return models.ErrAlreadyReviewed
}

func (s *MongoStore) DeleteAll(ctx context.Context) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{})
	return err
}

func (s *MongoStore) InsertMany(ctx context.Context, list []models.Product) error {
	docs := make([]any, 0, len(list))
	for i := range list {
		if list[i].ID.IsZero() {
			list[i].ID = primitive.NewObjectID()
		}
		docs = append(docs, list[i])
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := s.coll.InsertMany(ctx, docs)
	return err
}
