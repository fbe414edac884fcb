package orders

import (
	"context"
	"fmt"
	"time"

	"storefront/globals"
	"storefront/logger"
	"storefront/models"
	"storefront/mq"
	"storefront/stripe"
)

// SessionGetter fetches a checkout session by id.
type SessionGetter interface {
	GetCheckoutSession(ctx context.Context, id string) (*stripe.Session, error)
}

// Updater persists a reconciled order.
type Updater interface {
	Update(ctx context.Context, o *models.Order) error
}

// Reconciler brings Stripe orders awaiting payment up to date with their checkout session.
type Reconciler struct {
	sessions SessionGetter
	store    Updater
	events   *mq.Emitter
	log      *logger.Logger
	now      func() time.Time
}

func NewReconciler(sessions SessionGetter, store Updater, events *mq.Emitter, log *logger.Logger) *Reconciler {
	return &Reconciler{sessions: sessions, store: store, events: events, log: log, now: time.Now}
}

// Reconcile updates list in place and returns how many orders changed.
// Failures are logged per order and never abort the pass.
func (rc *Reconciler) Reconcile(ctx context.Context, list []models.Order) int {
	changed := 0
	for i := range list {
		if rc.reconcileOne(ctx, &list[i]) {
			changed++
		}
	}
	return changed
}

func (rc *Reconciler) reconcileOne(ctx context.Context, o *models.Order) bool {
	if !o.AwaitingStripe() {
		return false
	}
	changed, _, err := rc.Refresh(ctx, o)
	if err != nil {
		rc.log.Error("reconciling order failed", "order_id", o.ID.Hex(), "session_id", o.PaymentResult.ID, "err", err)
		return false
	}
	return changed
}

// Refresh reads the checkout session of an order awaiting Stripe payment and
// persists a paid or expired outcome onto o. It returns the session it read.
func (rc *Reconciler) Refresh(ctx context.Context, o *models.Order) (bool, *stripe.Session, error) {
	session, err := rc.sessions.GetCheckoutSession(ctx, o.PaymentResult.ID)
	if err != nil {
		return false, nil, err
	}
	if session == nil {
		return false, nil, fmt.Errorf("checkout session %s not returned", o.PaymentResult.ID)
	}

	now := rc.now()
	updated := *o
	result := *o.PaymentResult
	updated.PaymentResult = &result

	switch {
	case session.Paid():
		updated.IsPaid = true
		updated.PaidAt = &now
		if session.PaymentIntentID != "" {
			result.ID = session.PaymentIntentID
		}
		result.Status = globals.PaymentStatusPaid
	case session.Expired(now):
		result.Status = globals.PaymentStatusExpired
	default:
		return false, session, nil
	}

	if err := rc.store.Update(ctx, &updated); err != nil {
		return false, session, fmt.Errorf("save reconciled order: %w", err)
	}
	*o = updated

	rc.log.Info("order reconciled", "order_id", o.ID.Hex(), "status", result.Status)
	if result.Status == globals.PaymentStatusPaid {
		rc.events.Emit(ctx, mq.OrderPaid, "order", o.ID.Hex(), o.UserID.Hex())
	}
	return true, session, nil
}
