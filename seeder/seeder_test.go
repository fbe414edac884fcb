package seeder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/auth"
	"storefront/logger"
	"storefront/models"
	"storefront/orders"
	"storefront/products"
	"storefront/users"
	"storefront/utils"
)

func TestImportReplacesEverything(t *testing.T) {
	ctx := context.Background()
	userStore := users.NewMemoryStore(models.User{Name: "Old", Email: "old@example.com"})
	productStore := products.NewMemoryStore(models.Product{Name: "Old product"})
	orderStore := orders.NewMemoryStore(models.Order{UserID: primitive.NewObjectID()})

	s := New(userStore, productStore, orderStore, logger.Discard())
	require.NoError(t, s.Import(ctx))

	_, err := userStore.FindByEmail(ctx, "old@example.com")
	assert.Error(t, err)

	admin, err := userStore.FindByEmail(ctx, AdminEmail)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.True(t, auth.CheckPassword(admin.Password, "123456"))

	list, total, err := productStore.List(ctx, products.Query{}, utils.Page{Number: 1, Size: 100})
	require.NoError(t, err)
	assert.EqualValues(t, len(sampleProducts), total)
	for _, p := range list {
		assert.Equal(t, admin.ID, p.User)
		assert.Zero(t, p.NumReviews)
	}

	placed, count, err := orderStore.List(ctx, utils.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, placed)
	assert.Zero(t, count)
}

func TestImportProductsNeedsAdmin(t *testing.T) {
	ctx := context.Background()
	s := New(users.NewMemoryStore(), products.NewMemoryStore(), orders.NewMemoryStore(), logger.Discard())
	assert.Error(t, s.ImportProducts(ctx))

	admin := models.User{ID: primitive.NewObjectID(), Name: "Admin", Email: AdminEmail, IsAdmin: true}
	productStore := products.NewMemoryStore()
	s = New(users.NewMemoryStore(admin), productStore, orders.NewMemoryStore(), logger.Discard())
	require.NoError(t, s.ImportProducts(ctx))

	top, err := productStore.Top(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, top, len(sampleProducts))
}

func TestDestroyWipesCollections(t *testing.T) {
	ctx := context.Background()
	userStore := users.NewMemoryStore(models.User{Email: "a@example.com"})
	productStore := products.NewMemoryStore(models.Product{Name: "p"})
	s := New(userStore, productStore, orders.NewMemoryStore(), logger.Discard())

	require.NoError(t, s.Destroy(ctx))
	_, total, err := userStore.List(ctx, utils.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	top, err := productStore.Top(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}
