package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/auth"
	"storefront/logger"
	"storefront/middleware"
	"storefront/models"
	"storefront/utils"
)

var secret = []byte("users-secret")

func newHandler(seed ...models.User) (*Handler, *MemoryStore) {
	store := NewMemoryStore(seed...)
	return NewHandler(store, secret, logger.Discard()), store
}

func call(h utils.HandlerFunc, method, body string, user *models.User, ps httprouter.Params) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	utils.ErrorResponder{}.Handle(h)(rec, req, ps)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterThenLogin(t *testing.T) {
	h, store := newHandler()

	rec := call(h.Register, http.MethodPost, `{"name":"Jane","email":"Jane@Example.com","password":"123456"}`, nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "jane@example.com", body["email"])
	assert.Equal(t, false, body["isAdmin"])
	assert.NotContains(t, body, "password")

	id, err := auth.ParseToken(secret, body["token"].(string))
	require.NoError(t, err)
	stored, err := store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.NotEqual(t, "123456", stored.Password)

	rec = call(h.Login, http.MethodPost, `{"email":"JANE@example.com","password":"123456"}`, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["token"])

	rec = call(h.Login, http.MethodPost, `{"email":"jane@example.com","password":"wrong!"}`, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", decode(t, rec)["message"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _ := newHandler(models.User{Name: "Jane", Email: "jane@example.com"})

	rec := call(h.Register, http.MethodPost, `{"name":"Other","email":"JANE@example.com","password":"123456"}`, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", decode(t, rec)["message"])
}

func TestRegisterValidates(t *testing.T) {
	h, _ := newHandler()

	rec := call(h.Register, http.MethodPost, `{"name":"Jane","email":"not-an-email","password":"123"}`, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decode(t, rec)["message"].(string)
	assert.Contains(t, msg, "email must be a valid email")
	assert.Contains(t, msg, "password must be at least 6")
}

func TestUpdateProfileKeepsBlankFields(t *testing.T) {
	hash, err := auth.HashPassword("123456")
	require.NoError(t, err)
	jane := models.User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com", Password: hash}
	h, store := newHandler(jane)

	rec := call(h.UpdateProfile, http.MethodPut, `{"name":"Jane Doe"}`, &jane, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Jane Doe", body["name"])
	assert.Equal(t, "jane@example.com", body["email"])
	assert.NotEmpty(t, body["token"])

	stored, _ := store.FindByID(context.Background(), jane.ID)
	assert.Equal(t, hash, stored.Password)
}

func TestAdminCannotDemoteSelf(t *testing.T) {
	admin := models.User{ID: primitive.NewObjectID(), Name: "Admin", Email: "admin@example.com", IsAdmin: true}
	h, store := newHandler(admin)
	ps := httprouter.Params{{Key: "id", Value: admin.ID.Hex()}}

	rec := call(h.Update, http.MethodPut, `{"isAdmin":false}`, &admin, ps)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Admin cannot remove their own Admin Status", decode(t, rec)["message"])

	stored, _ := store.FindByID(context.Background(), admin.ID)
	assert.True(t, stored.IsAdmin)
}

func TestAdminPromotesOtherUser(t *testing.T) {
	admin := models.User{ID: primitive.NewObjectID(), Email: "admin@example.com", IsAdmin: true}
	jane := models.User{ID: primitive.NewObjectID(), Name: "Jane", Email: "jane@example.com"}
	h, _ := newHandler(admin, jane)

	rec := call(h.Update, http.MethodPut, `{"isAdmin":true}`, &admin, httprouter.Params{{Key: "id", Value: jane.ID.Hex()}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["isAdmin"])
}

func TestListSetsPaginationHeader(t *testing.T) {
	var seed []models.User
	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		seed = append(seed, models.User{Email: email, Password: "hash"})
	}
	h, _ := newHandler(seed...)

	req := httptest.NewRequest(http.MethodGet, "/api/users?pageNumber=2&pageSize=2", nil)
	rec := httptest.NewRecorder()
	utils.ErrorResponder{}.Handle(h.List)(rec, req, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var p utils.Pagination
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("X-Pagination")), &p))
	assert.Equal(t, utils.Pagination{Page: 2, PageSize: 2, TotalRecords: 3, TotalPages: 2}, p)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
	assert.NotContains(t, list[0], "password")
}

func TestDeleteUser(t *testing.T) {
	jane := models.User{ID: primitive.NewObjectID(), Email: "jane@example.com"}
	h, _ := newHandler(jane)
	ps := httprouter.Params{{Key: "id", Value: jane.ID.Hex()}}

	rec := call(h.Delete, http.MethodDelete, "", nil, ps)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User removed", decode(t, rec)["message"])

	rec = call(h.Delete, http.MethodDelete, "", nil, ps)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
