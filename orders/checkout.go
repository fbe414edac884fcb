package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/schema"
	"github.com/julienschmidt/httprouter"

	"storefront/db"
	"storefront/globals"
	"storefront/logger"
	"storefront/models"
	"storefront/pricing"
	"storefront/stripe"
	"storefront/utils"
)

const (
	defaultOrigin   = "http://localhost:3000"
	checkoutLockTTL = 30 * time.Second
	currency        = "usd"
)

// SessionCreator opens a checkout session with the payment provider.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req stripe.SessionRequest) (*stripe.Session, error)
}

// Locker guards against double submission of the same order.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string)
}

type Checkout struct {
	sessions SessionCreator
	locks    Locker
	log      *logger.Logger
	now      func() time.Time
}

func NewCheckout(sessions SessionCreator, locks Locker, log *logger.Logger) *Checkout {
	return &Checkout{sessions: sessions, locks: locks, log: log, now: time.Now}
}

type checkoutRequest struct {
	OrderID   string `json:"order_id" schema:"order_id"`
	OriginURL string `json:"origin_url" schema:"origin_url"`
}

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// decodeCheckoutRequest accepts a JSON body or a plain HTML form submit. Both fields are optional.
func decodeCheckoutRequest(r *http.Request) (checkoutRequest, error) {
	var req checkoutRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(1 << 20)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return req, utils.Validation("Invalid form payload")
		}
		if err := formDecoder.Decode(&req, r.PostForm); err != nil {
			return req, utils.Validation("Invalid form payload")
		}
	default:
		err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			return req, utils.Validation("Invalid JSON payload")
		}
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.OriginURL = strings.TrimSpace(req.OriginURL)
	return req, nil
}

func lineItems(o *models.Order) []stripe.LineItem {
	items := make([]stripe.LineItem, 0, len(o.OrderItems)+2)
	for _, item := range o.OrderItems {
		items = append(items, stripe.LineItem{Name: item.Name, UnitAmount: pricing.Cents(item.Price), Quantity: int64(item.Qty)})
	}
	return append(items,
		stripe.LineItem{Name: "Tax", UnitAmount: pricing.Cents(o.TaxPrice), Quantity: 1},
		stripe.LineItem{Name: "Shipping", UnitAmount: pricing.Cents(o.ShippingPrice), Quantity: 1},
	)
}

// CheckoutStripeWithFollow handles POST /api/orders/:id/checkout-stripe-with-follow.
// It opens a Stripe Checkout session for the order and redirects the browser to it.
// A session that is still open is reused, and paid orders are refused.
func (s *Service) CheckoutStripeWithFollow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	req, err := decodeCheckoutRequest(r)
	if err != nil {
		return err
	}
	orderID := ps.ByName("id")
	if req.OrderID != "" {
		orderID = req.OrderID
	}
	origin := defaultOrigin
	if req.OriginURL != "" {
		origin = req.OriginURL
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	o, err := s.load(ctx, r, orderID)
	if err != nil {
		return err
	}
	release, err := s.checkout.Lock(ctx, o.ID.Hex())
	if err != nil {
		return err
	}
	defer release()

	// Reload under the lock so a checkout that finished in between is seen.
	if o, err = s.load(ctx, r, o.ID.Hex()); err != nil {
		return err
	}
	url, err := s.resumeCheckout(ctx, o)
	if err != nil {
		return err
	}
	if url != "" {
		s.log.Info("checkout session reused", "order_id", o.ID.Hex(), "session_id", o.PaymentResult.ID)
		http.Redirect(w, r, url, http.StatusSeeOther)
		return nil
	}

	customer, err := s.users.FindByID(ctx, o.UserID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return utils.Internal("Could not load customer", err)
	}
	if customer == nil || customer.Email == "" {
		return utils.Internal("Order has no customer email", nil)
	}

	url, err = s.checkout.Open(ctx, o, customer.Email, origin)
	if err != nil {
		return err
	}
	if err := s.save(ctx, o); err != nil {
		return err
	}
	s.log.Info("checkout session created", "order_id", o.ID.Hex(), "session_id", o.PaymentResult.ID)

	http.Redirect(w, r, url, http.StatusSeeOther)
	return nil
}

// resumeCheckout returns the URL of the order's checkout session while it is
// still open, or "" when a new session is needed. Paid orders are a conflict.
func (s *Service) resumeCheckout(ctx context.Context, o *models.Order) (string, error) {
	if o.AwaitingStripe() {
		_, session, err := s.reconciler.Refresh(ctx, o)
		if err != nil {
			return "", utils.Upstream("Could not verify the existing checkout session", err)
		}
		if session.Paid() {
			return "", utils.Conflict("Order is already paid")
		}
		if o.AwaitingStripe() && session.URL != "" {
			return session.URL, nil
		}
	}
	if o.IsPaid {
		return "", utils.Conflict("Order is already paid")
	}
	return "", nil
}

// Lock takes the checkout lock for the order. The caller must run the
// returned release once the order has been saved.
func (c *Checkout) Lock(ctx context.Context, orderID string) (func(), error) {
	key := "checkout_lock:" + orderID
	ok, err := c.locks.AcquireLock(ctx, key, checkoutLockTTL)
	if err != nil {
		return nil, utils.Internal("Could not lock order", err)
	}
	if !ok {
		return nil, utils.Conflict("Checkout already in progress")
	}
	return func() { c.locks.ReleaseLock(context.WithoutCancel(ctx), key) }, nil
}

// Open creates a checkout session for o and records it as the order's
// pending payment result. It returns the session URL.
func (c *Checkout) Open(ctx context.Context, o *models.Order, email, origin string) (string, error) {
	session, err := c.sessions.CreateCheckoutSession(ctx, stripe.SessionRequest{
		LineItems:     lineItems(o),
		Currency:      currency,
		SuccessURL:    origin + "?stripe=payment-success",
		CancelURL:     origin,
		CustomerEmail: email,
	})
	if err != nil {
		c.log.Error("checkout session creation failed", "order_id", o.ID.Hex(), "err", err)
		return "", utils.Upstream("Error generating checkout session", err)
	}
	if session == nil || session.ID == "" || session.URL == "" {
		return "", utils.Upstream("Error generating checkout session", nil)
	}

	o.PaymentResult = &models.PaymentResult{
		ID:           session.ID,
		Status:       globals.PaymentStatusIncomplete,
		UpdateTime:   c.now().UTC().Format(http.TimeFormat),
		EmailAddress: email,
	}
	return session.URL, nil
}
