// Package stripe creates and reads Stripe Checkout sessions.
package stripe

import (
	"context"
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const PaymentStatusPaid = "paid"

type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	LineItems     []LineItem
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

// Session is the subset of a Checkout session the order flow reads.
type Session struct {
	ID              string
	URL             string
	PaymentStatus   string
	PaymentIntentID string
	ExpiresAt       time.Time
}

// Paid reports whether the customer completed payment.
func (s *Session) Paid() bool { return s.PaymentStatus == PaymentStatusPaid }

// Expired reports whether the session is unpaid and past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.Paid() && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type Gateway struct {
	api *client.API
}

// New builds a gateway against the live Stripe API.
func New(secretKey string) *Gateway {
	return NewWithURL(secretKey, "")
}

// NewWithURL points the gateway at another API base URL. Requests are never retried.
func NewWithURL(secretKey, url string) *Gateway {
	cfg := &stripeapi.BackendConfig{
		MaxNetworkRetries: stripeapi.Int64(0),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelError},
	}
	if url != "" {
		cfg.URL = stripeapi.String(url)
	}
	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, cfg),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, cfg),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, cfg),
	}
	return &Gateway{api: client.New(secretKey, backends)}
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripeapi.CheckoutSessionParams{
		Mode:               stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		SuccessURL:         stripeapi.String(req.SuccessURL),
		CancelURL:          stripeapi.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency: stripeapi.String(req.Currency),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(item.Name),
				},
				UnitAmount: stripeapi.Int64(item.UnitAmount),
			},
			Quantity: stripeapi.Int64(item.Quantity),
		})
	}
	params.Context = ctx

	cs, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return toSession(cs), nil
}

func (g *Gateway) GetCheckoutSession(ctx context.Context, id string) (*Session, error) {
	params := &stripeapi.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session %s: %w", id, err)
	}
	return toSession(cs), nil
}

func toSession(cs *stripeapi.CheckoutSession) *Session {
	s := &Session{
		ID:            cs.ID,
		URL:           cs.URL,
		PaymentStatus: string(cs.PaymentStatus),
	}
	if cs.PaymentIntent != nil {
		s.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.ExpiresAt > 0 {
		s.ExpiresAt = time.Unix(cs.ExpiresAt, 0)
	}
	return s
}
