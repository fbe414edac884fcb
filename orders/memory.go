package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/db"
	"storefront/models"
	"storefront/utils"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]models.Order
	writes int
}

func NewMemoryStore(seed ...models.Order) *MemoryStore {
	s := &MemoryStore{orders: make(map[primitive.ObjectID]models.Order)}
	for _, o := range seed {
		if o.ID.IsZero() {
			o.ID = primitive.NewObjectID()
		}
		s.orders[o.ID] = clone(o)
	}
	return s
}

func clone(o models.Order) models.Order {
	o.OrderItems = append([]models.OrderItem(nil), o.OrderItems...)
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		o.PaymentResult = &pr
	}
	o.User = nil
	return o
}

// Writes counts successful Update calls.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryStore) Create(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	o.ID = primitive.NewObjectID()
	o.CreatedAt, o.UpdatedAt = now, now
	s.orders[o.ID] = clone(*o)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	o = clone(o)
	return &o, nil
}

func (s *MemoryStore) sorted(keep func(models.Order) bool) []models.Order {
	list := []models.Order{}
	for _, o := range s.orders {
		if keep(o) {
			list = append(list, clone(o))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID.Hex() > list[j].ID.Hex()
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

func (s *MemoryStore) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (s *MemoryStore) List(_ context.Context, page utils.Page) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted(func(models.Order) bool { return true })
	start := min(int(page.Skip()), len(all))
	end := min(start+int(page.Limit()), len(all))
	return all[start:end], int64(len(all)), nil
}

func (s *MemoryStore) Update(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return db.ErrNotFound
	}
	o.UpdatedAt = time.Now()
	s.orders[o.ID] = clone(*o)
	s.writes++
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[primitive.ObjectID]models.Order)
	return nil
}
