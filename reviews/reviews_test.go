package reviews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/logger"
	"storefront/middleware"
	"storefront/models"
	"storefront/products"
	"storefront/utils"
)

type invalidations struct {
	mu  sync.Mutex
	ids []primitive.ObjectID
}

func (i *invalidations) Invalidate(_ context.Context, id primitive.ObjectID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, id)
}

func setup(t *testing.T) (*Service, *products.MemoryStore, *invalidations, primitive.ObjectID) {
	t.Helper()
	p := models.Product{ID: primitive.NewObjectID(), Name: "Airpods", IsActive: true}
	store := products.NewMemoryStore(p)
	inv := &invalidations{}
	return NewService(store, inv, nil, logger.Discard()), store, inv, p.ID
}

func post(svc *Service, productID string, user *models.User, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/products/"+productID+"/reviews", strings.NewReader(body))
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	utils.ErrorResponder{}.Handle(svc.Create)(rec, req, httprouter.Params{{Key: "id", Value: productID}})
	return rec
}

func TestReviewsAggregateRating(t *testing.T) {
	svc, store, inv, id := setup(t)
	ratings := []int{5, 3, 4, 1, 2}

	for i, rating := range ratings {
		user := &models.User{ID: primitive.NewObjectID(), Name: fmt.Sprintf("user%d", i)}
		rec := post(svc, id.Hex(), user, fmt.Sprintf(`{"rating":%d,"comment":"ok"}`, rating))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"message":"You've successfully left a review."}`, rec.Body.String())
	}

	p, err := store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 5, p.NumReviews)
	assert.Len(t, p.Reviews, 5)
	assert.InDelta(t, 3.0, p.Rating, 1e-9)
	assert.Equal(t, "user0", p.Reviews[0].Name)
	assert.Len(t, inv.ids, 5)
}

func TestDuplicateReviewConflicts(t *testing.T) {
	svc, store, _, id := setup(t)
	user := &models.User{ID: primitive.NewObjectID(), Name: "Jane"}

	require.Equal(t, http.StatusCreated, post(svc, id.Hex(), user, `{"rating":4,"comment":"good"}`).Code)
	rec := post(svc, id.Hex(), user, `{"rating":1,"comment":"changed my mind"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "You've already reviewed this product", body["message"])

	p, _ := store.FindByID(context.Background(), id)
	require.Len(t, p.Reviews, 1)
	assert.Equal(t, 4, p.Reviews[0].Rating)
	assert.Equal(t, 4.0, p.Rating)
}

func TestConcurrentDuplicateReviewsLandOnce(t *testing.T) {
	svc, store, _, id := setup(t)
	user := &models.User{ID: primitive.NewObjectID(), Name: "Jane"}

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = post(svc, id.Hex(), user, `{"rating":5,"comment":"fast"}`).Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, created)
	p, _ := store.FindByID(context.Background(), id)
	assert.Equal(t, 1, p.NumReviews)
}

func TestReviewValidationAndMissingProduct(t *testing.T) {
	svc, store, _, id := setup(t)
	user := &models.User{ID: primitive.NewObjectID(), Name: "Jane"}

	rec := post(svc, id.Hex(), user, `{"rating":6,"comment":"too good"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(svc, id.Hex(), user, `{"rating":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(svc, id.Hex(), user, `{"rating":3,"comment":"   \t "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "comment must not be blank")
	p, _ := store.FindByID(context.Background(), id)
	assert.Zero(t, p.NumReviews)

	rec = post(svc, primitive.NewObjectID().Hex(), user, `{"rating":3,"comment":"where"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
