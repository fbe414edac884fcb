package pay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStoreReserve(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := Record{Key: "u1:k1", Method: "POST", Path: "/api/orders", RequestHash: "h1", CreatedAt: now, ExpiresAt: now.Add(recordTTL)}
	duplicate := mtest.CreateWriteErrorsResponse(mtest.WriteError{Code: 11000, Message: "E11000 duplicate key error"})

	mt.Run("new key", func(mt *mtest.T) {
		store := &MongoStore{coll: mt.DB.Collection("idempotency"), now: func() time.Time { return now }}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		existing, reserved, err := store.Reserve(context.Background(), rec)
		require.NoError(mt, err)
		assert.True(mt, reserved)
		assert.Nil(mt, existing)
	})

	mt.Run("expired record not yet swept", func(mt *mtest.T) {
		store := &MongoStore{coll: mt.DB.Collection("idempotency"), now: func() time.Time { return now }}
		mt.AddMockResponses(
			duplicate,
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		existing, reserved, err := store.Reserve(context.Background(), rec)
		require.NoError(mt, err)
		assert.True(mt, reserved)
		assert.Nil(mt, existing)

		started := mt.GetAllStartedEvents()
		require.Len(mt, started, 2)
		assert.Equal(mt, "update", started[1].CommandName)
	})

	mt.Run("live record", func(mt *mtest.T) {
		store := &MongoStore{coll: mt.DB.Collection("idempotency"), now: func() time.Time { return now }}
		mt.AddMockResponses(
			duplicate,
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "storefront.idempotency", mtest.FirstBatch, bson.D{
				{Key: "key", Value: "u1:k1"},
				{Key: "request_hash", Value: "h0"},
				{Key: "expires_at", Value: now.Add(time.Hour)},
			}),
		)

		existing, reserved, err := store.Reserve(context.Background(), rec)
		require.NoError(mt, err)
		assert.False(mt, reserved)
		require.NotNil(mt, existing)
		assert.Equal(mt, "h0", existing.RequestHash)
		assert.Nil(mt, existing.Response)
	})
}
