package seeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/auth"
	"storefront/db"
	"storefront/logger"
	"storefront/models"
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	DeleteAll(ctx context.Context) error
}

type ProductStore interface {
	InsertMany(ctx context.Context, list []models.Product) error
	DeleteAll(ctx context.Context) error
}

type OrderStore interface {
	DeleteAll(ctx context.Context) error
}

// Seeder loads or wipes the sample data set.
type Seeder struct {
	users    UserStore
	products ProductStore
	orders   OrderStore
	log      *logger.Logger
	now      func() time.Time
}

func New(users UserStore, products ProductStore, orders OrderStore, log *logger.Logger) *Seeder {
	return &Seeder{users: users, products: products, orders: orders, log: log, now: time.Now}
}

// Import replaces every order, product and user with the sample set.
func (s *Seeder) Import(ctx context.Context) error {
	if err := s.Destroy(ctx); err != nil {
		return err
	}

	var admin *models.User
	for _, su := range sampleUsers {
		hash, err := auth.HashPassword(su.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", su.Email, err)
		}
		u := &models.User{Name: su.Name, Email: su.Email, Password: hash, IsAdmin: su.IsAdmin}
		if err := s.users.Create(ctx, u); err != nil {
			return fmt.Errorf("create user %s: %w", su.Email, err)
		}
		if admin == nil {
			admin = u
		}
	}

	if err := s.products.InsertMany(ctx, Products(admin.ID, s.now())); err != nil {
		return fmt.Errorf("insert products: %w", err)
	}
	s.log.Info("data imported", "users", len(sampleUsers), "products", len(sampleProducts))
	return nil
}

// ImportProducts replaces orders and products, keeping users. The catalogue
// is owned by the existing admin@example.com account.
func (s *Seeder) ImportProducts(ctx context.Context) error {
	admin, err := s.users.FindByEmail(ctx, AdminEmail)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("admin user %s not found", AdminEmail)
	}
	if err != nil {
		return fmt.Errorf("find admin: %w", err)
	}
	if err := s.DestroyProducts(ctx); err != nil {
		return err
	}
	if err := s.products.InsertMany(ctx, Products(admin.ID, s.now())); err != nil {
		return fmt.Errorf("insert products: %w", err)
	}
	s.log.Info("product data imported", "products", len(sampleProducts))
	return nil
}

// Destroy removes every order, product and user.
func (s *Seeder) Destroy(ctx context.Context) error {
	if err := s.DestroyProducts(ctx); err != nil {
		return err
	}
	if err := s.users.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	s.log.Info("data destroyed")
	return nil
}

func (s *Seeder) DestroyProducts(ctx context.Context) error {
	if err := s.orders.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete orders: %w", err)
	}
	if err := s.products.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	return nil
}
