package pay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/db"
)

// Record is one remembered Idempotency-Key. Response stays nil while the
// first request is in flight.
type Record struct {
	Key         string          `bson:"key"`
	Method      string          `bson:"method"`
	Path        string          `bson:"path"`
	UserID      string          `bson:"user_id"`
	RequestHash string          `bson:"request_hash"`
	Response    *StoredResponse `bson:"response,omitempty"`
	CreatedAt   time.Time       `bson:"created_at"`
	ExpiresAt   time.Time       `bson:"expires_at"`
}

type StoredResponse struct {
	Status      int    `bson:"status"`
	ContentType string `bson:"content_type"`
	Body        []byte `bson:"body"`
}

// Store remembers idempotency records. Reserve inserts rec, or returns the
// record already holding the key with reserved=false.
type Store interface {
	Reserve(ctx context.Context, rec Record) (existing *Record, reserved bool, err error)
	Complete(ctx context.Context, key string, resp StoredResponse) error
	Release(ctx context.Context, key string) error
}

type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore relies on the unique key and expires_at TTL indexes from db.EnsureIndexes.
func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{coll: database.Collection(db.IdempotencyCollection), now: time.Now}
}

func (s *MongoStore) Reserve(ctx context.Context, rec Record) (*Record, bool, error) {
	_, err := s.coll.InsertOne(ctx, rec)
	if err == nil {
		return nil, true, nil
	}
	if !db.IsDuplicateKey(err) {
		return nil, false, fmt.Errorf("insert idempotency record: %w", err)
	}

	// The TTL monitor only sweeps about once a minute, so an expired
	// record may still hold the key. Take it over in place.
	res, err := s.coll.ReplaceOne(ctx, bson.M{"key": rec.Key, "expires_at": bson.M{"$lte": s.now()}}, rec)
	if err != nil {
		return nil, false, fmt.Errorf("replace expired idempotency record: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil, true, nil
	}

	var existing Record
	err = s.coll.FindOne(ctx, bson.M{"key": rec.Key}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// expired between the insert and the lookup
		return nil, false, db.ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("find idempotency record: %w", err)
	}
	return &existing, false, nil
}

func (s *MongoStore) Complete(ctx context.Context, key string, resp StoredResponse) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"key": key}, bson.M{"$set": bson.M{"response": resp}})
	if err != nil {
		return fmt.Errorf("save idempotent response: %w", err)
	}
	return nil
}

func (s *MongoStore) Release(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"key": key}); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// MemoryStore keeps records in process. Expired records are dropped on access.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, rec Record) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.Key]; ok && s.now().Before(existing.ExpiresAt) {
		return &existing, false, nil
	}
	s.records[rec.Key] = rec
	return nil, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, resp StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return db.ErrNotFound
	}
	rec.Response = &resp
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
