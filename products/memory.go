package products

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/db"
	"storefront/models"
	"storefront/utils"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
	order    []primitive.ObjectID
}

func NewMemoryStore(seed ...models.Product) *MemoryStore {
	s := &MemoryStore{products: make(map[primitive.ObjectID]models.Product)}
	_ = s.InsertMany(context.Background(), seed)
	return s
}

func (s *MemoryStore) put(p models.Product) {
	if _, ok := s.products[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.products[p.ID] = p
}

func (s *MemoryStore) List(_ context.Context, q Query, page utils.Page) ([]models.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.Product{}
	keyword := strings.ToLower(q.Keyword)
	for _, id := range s.order {
		p := s.products[id]
		if q.ActiveOnly && !p.IsActive {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(p.Name), keyword) {
			continue
		}
		matched = append(matched, p)
	}
	start := min(int(page.Skip()), len(matched))
	end := min(start+int(page.Limit()), len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (s *MemoryStore) Top(_ context.Context, limit int) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := []models.Product{}
	for _, id := range s.order {
		if p := s.products[id]; p.IsActive {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Rating > active[j].Rating })
	return active[:min(limit, len(active))], nil
}

func (s *MemoryStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	p.Reviews = append([]models.Review{}, p.Reviews...)
	return &p, nil
}

func (s *MemoryStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (s *MemoryStore) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = primitive.NewObjectID()
	if p.Reviews == nil {
		p.Reviews = []models.Review{}
	}
	s.put(*p)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return db.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	s.put(*p)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.products, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// AddReview holds the store lock across the check and the append.
func (s *MemoryStore) AddReview(_ context.Context, id primitive.ObjectID, r models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return db.ErrNotFound
	}
	p.Reviews = append([]models.Review{}, p.Reviews...)
	if err := p.AddReview(r); err != nil {
		return err
	}
	p.UpdatedAt = r.CreatedAt
	s.put(p)
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[primitive.ObjectID]models.Product)
	s.order = nil
	return nil
}

func (s *MemoryStore) InsertMany(_ context.Context, list []models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range list {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		if p.Reviews == nil {
			p.Reviews = []models.Review{}
		}
		s.put(p)
	}
	return nil
}
