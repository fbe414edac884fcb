package mq

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"storefront/globals"
)

const (
	OrderCreated   = "order-created"
	OrderPaid      = "order-paid"
	OrderDelivered = "order-delivered"
	ReviewAdded    = "review-added"
)

// Event is the JSON message published for every domain change.
type Event struct {
	Name       string    `json:"event"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	UserID     string    `json:"user_id,omitempty"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Emitter publishes events to the storefront channel. A nil Emitter drops them.
type Emitter struct {
	pub Publisher
}

func NewEmitter(pub Publisher) *Emitter {
	return &Emitter{pub: pub}
}

// Emit is fire-and-forget: failures are logged, never returned.
func (e *Emitter) Emit(ctx context.Context, name, entityType, entityID, userID string) {
	if e == nil || e.pub == nil {
		return
	}
	data, err := json.Marshal(Event{
		Name:       name,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		At:         time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[Emit] Failed to marshal %s: %v", name, err)
		return
	}
	if err := e.pub.Publish(ctx, globals.EventsChannel, data); err != nil {
		log.Printf("[Emit] Failed to publish %s for %s: %v", name, entityID, err)
	}
}
