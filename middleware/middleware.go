package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/auth"
	"storefront/db"
	"storefront/globals"
	"storefront/models"
	"storefront/utils"
)

// UserFinder loads the user a token was issued for.
type UserFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Authenticator guards routes with bearer tokens. Every request is re-verified.
type Authenticator struct {
	secret []byte
	users  UserFinder
	errs   utils.ErrorResponder
}

func NewAuthenticator(secret []byte, users UserFinder, errs utils.ErrorResponder) *Authenticator {
	return &Authenticator{secret: secret, users: users, errs: errs}
}

// Protect requires a valid token and attaches the user to the request context.
func (a *Authenticator) Protect(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimSpace(header[len("Bearer "):]) == "" {
			a.errs.Write(w, utils.Unauthorized("Not authorized, no token"))
			return
		}

		userID, err := auth.ParseToken(a.secret, strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			a.errs.Write(w, utils.Unauthorized("Not authorized, token failed"))
			return
		}

		user, err := a.users.FindByID(r.Context(), userID)
		if errors.Is(err, db.ErrNotFound) {
			a.errs.Write(w, utils.Unauthorized("Not authorized, user not found"))
			return
		}
		if err != nil {
			a.errs.Write(w, utils.Internal("Could not load user", err))
			return
		}

		user.Password = ""
		ctx := context.WithValue(r.Context(), globals.UserKey, user)
		next(w, r.WithContext(ctx), ps)
	}
}

// Admin must run after Protect.
func (a *Authenticator) Admin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		user, ok := CurrentUser(r)
		if !ok || !user.IsAdmin {
			a.errs.Write(w, utils.Unauthorized("Not authorized, must be an admin"))
			return
		}
		next(w, r, ps)
	}
}

// ProtectAdmin is Protect followed by Admin.
func (a *Authenticator) ProtectAdmin(next httprouter.Handle) httprouter.Handle {
	return a.Protect(a.Admin(next))
}

// CurrentUser returns the user attached by Protect.
func CurrentUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(globals.UserKey).(*models.User)
	return user, ok && user != nil
}

// WithUser attaches user to ctx the way Protect does.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, globals.UserKey, user)
}
