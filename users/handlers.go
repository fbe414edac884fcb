package users

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"storefront/auth"
	"storefront/db"
	"storefront/logger"
	"storefront/middleware"
	"storefront/models"
	"storefront/utils"
)

const defaultPageSize = 8

// Handler serves the /users routes.
type Handler struct {
	store  Store
	secret []byte
	log    *logger.Logger
}

func NewHandler(store Store, secret []byte, log *logger.Logger) *Handler {
	return &Handler{store: store, secret: secret, log: log}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=6"`
}

type adminUpdateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email" validate:"omitempty,email"`
	IsAdmin *bool  `json:"isAdmin"`
}

func (h *Handler) authResponse(user *models.User, withToken bool) (models.AuthResponse, error) {
	resp := models.AuthResponse{ID: user.ID, Name: user.Name, Email: user.Email, IsAdmin: user.IsAdmin}
	if withToken {
		token, err := auth.GenerateToken(h.secret, user.ID)
		if err != nil {
			return resp, utils.Internal("Could not issue token", err)
		}
		resp.Token = token
	}
	return resp, nil
}

func timeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 10*time.Second)
}

// Register handles POST /api/users
func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	var req registerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return err
	}
	ctx, cancel := timeout(r)
	defer cancel()

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return utils.Internal("Could not hash password", err)
	}
	user := &models.User{Name: strings.TrimSpace(req.Name), Email: strings.ToLower(strings.TrimSpace(req.Email)), Password: hashed}
	if err := h.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return utils.Conflict("User already exists")
		}
		return utils.Internal("Could not create user", err)
	}
	h.log.Info("user registered", "user_id", user.ID.Hex())

	resp, err := h.authResponse(user, true)
	if err != nil {
		return err
	}
	utils.RespondWithJSON(w, http.StatusCreated, resp)
	return nil
}

// Login handles POST /api/users/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return err
	}
	ctx, cancel := timeout(r)
	defer cancel()

	user, err := h.store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return utils.Internal("Could not load user", err)
	}
	if user == nil || !auth.CheckPassword(user.Password, req.Password) {
		return utils.Unauthorized("Invalid email or password")
	}

	resp, err := h.authResponse(user, true)
	if err != nil {
		return err
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) load(ctx context.Context, rawID string) (*models.User, error) {
	id, err := utils.ParseObjectID(rawID, "User not found")
	if err != nil {
		return nil, err
	}
	user, err := h.store.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.NotFound("User not found")
	}
	if err != nil {
		return nil, utils.Internal("Could not load user", err)
	}
	return user, nil
}

// GetProfile handles GET /api/users/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	current, _ := middleware.CurrentUser(r)
	ctx, cancel := timeout(r)
	defer cancel()

	user, err := h.load(ctx, current.ID.Hex())
	if err != nil {
		return err
	}
	resp, _ := h.authResponse(user, false)
	utils.RespondWithJSON(w, http.StatusOK, resp)
	return nil
}

// UpdateProfile handles PUT /api/users/profile. Blank fields keep their value.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	var req profileRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return err
	}
	current, _ := middleware.CurrentUser(r)
	ctx, cancel := timeout(r)
	defer cancel()

	user, err := h.load(ctx, current.ID.Hex())
	if err != nil {
		return err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		user.Email = strings.ToLower(email)
	}
	if req.Password != "" {
		if user.Password, err = auth.HashPassword(req.Password); err != nil {
			return utils.Internal("Could not hash password", err)
		}
	}
	if err := h.save(ctx, user); err != nil {
		return err
	}

	resp, err := h.authResponse(user, true)
	if err != nil {
		return err
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) save(ctx context.Context, user *models.User) error {
	err := h.store.Update(ctx, user)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateEmail):
		return utils.Conflict("User already exists")
	case errors.Is(err, db.ErrNotFound):
		return utils.NotFound("User not found")
	default:
		return utils.Internal("Could not update user", err)
	}
}

// List handles GET /api/users (admin). Paging goes in the X-Pagination header.
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	page := utils.ParsePage(r, defaultPageSize)
	ctx, cancel := timeout(r)
	defer cancel()

	list, total, err := h.store.List(ctx, page)
	if err != nil {
		return utils.Internal("Could not list users", err)
	}
	utils.SetPaginationHeader(w, page, total)
	utils.RespondWithJSON(w, http.StatusOK, list)
	return nil
}

// Get handles GET /api/users/:id (admin)
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	ctx, cancel := timeout(r)
	defer cancel()

	user, err := h.load(ctx, ps.ByName("id"))
	if err != nil {
		return err
	}
	user.Password = ""
	utils.RespondWithJSON(w, http.StatusOK, user)
	return nil
}

// Update handles PUT /api/users/:id (admin). An admin cannot change their own admin flag.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	var req adminUpdateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return err
	}
	current, _ := middleware.CurrentUser(r)
	ctx, cancel := timeout(r)
	defer cancel()

	user, err := h.load(ctx, ps.ByName("id"))
	if err != nil {
		return err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		user.Email = strings.ToLower(email)
	}
	if req.IsAdmin != nil && *req.IsAdmin != user.IsAdmin {
		if current.ID == user.ID {
			return utils.Unauthorized("Admin cannot remove their own Admin Status")
		}
		user.IsAdmin = *req.IsAdmin
	}
	if err := h.save(ctx, user); err != nil {
		return err
	}
	h.log.Info("user updated by admin", "user_id", user.ID.Hex(), "admin_id", current.ID.Hex())

	resp, _ := h.authResponse(user, false)
	utils.RespondWithJSON(w, http.StatusOK, resp)
	return nil
}

// Delete handles DELETE /api/users/:id (admin)
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	ctx, cancel := timeout(r)
	defer cancel()

	id, err := utils.ParseObjectID(ps.ByName("id"), "User not found")
	if err != nil {
		return err
	}
	if err := h.store.Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return utils.NotFound("User not found")
		}
		return utils.Internal("Could not delete user", err)
	}
	utils.RespondWithMessage(w, http.StatusOK, "User removed")
	return nil
}
