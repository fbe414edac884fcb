package globals

// Context keys
type ContextKey string

const UserKey ContextKey = "user"

// Payment methods and payment-result states stored on orders.
const (
	PaymentMethodStripe = "stripe"

	PaymentStatusIncomplete = "IN_COMPLETE"
	PaymentStatusPaid       = "PAID"
	PaymentStatusExpired    = "EXPIRED"
)

// EventsChannel is the Redis pub/sub channel domain events are published to.
const EventsChannel = "storefront-events"
