package orders

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/db"
	"storefront/logger"
	"storefront/middleware"
	"storefront/models"
	"storefront/mq"
	"storefront/pricing"
	"storefront/utils"
)

const (
	requestTimeout  = 10 * time.Second
	defaultPageSize = 8
)

type UserLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
}

type ProductLookup interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
}

// Service serves the /orders routes.
type Service struct {
	store      Store
	users      UserLookup
	products   ProductLookup
	reconciler *Reconciler
	checkout   *Checkout
	events     *mq.Emitter
	log        *logger.Logger
}

func NewService(store Store, users UserLookup, products ProductLookup, reconciler *Reconciler, checkout *Checkout, events *mq.Emitter, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		users:      users,
		products:   products,
		reconciler: reconciler,
		checkout:   checkout,
		events:     events,
		log:        log,
	}
}

type itemRequest struct {
	Product string `json:"product" validate:"required"`
	Qty     int    `json:"qty" validate:"required,min=1"`
}

type createRequest struct {
	OrderItems      []itemRequest          `json:"orderItems" validate:"dive"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required"`
}

type paymentRequest struct {
	ID         string `json:"id" validate:"required"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

// Create handles POST /api/orders. Prices come from the catalogue, not the client.
func (s *Service) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	var req createRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return err
	}
	if len(req.OrderItems) == 0 {
		return utils.Validation("No order items")
	}
	user, _ := middleware.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ids := make([]primitive.ObjectID, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		id, err := primitive.ObjectIDFromHex(item.Product)
		if err != nil {
			return utils.NotFound("Product not found")
		}
		ids = append(ids, id)
	}
	catalogue, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return utils.Internal("Could not load products", err)
	}

	items := make([]models.OrderItem, 0, len(ids))
	lines := make([]pricing.Line, 0, len(ids))
	for i, id := range ids {
		p, ok := catalogue[id]
		if !ok {
			return utils.NotFound("Product not found")
		}
		qty := req.OrderItems[i].Qty
		items = append(items, models.OrderItem{Name: p.Name, Qty: qty, Image: p.Image, Price: p.Price, Product: p.ID})
		lines = append(lines, pricing.Line{Price: p.Price, Qty: qty})
	}
	totals := pricing.Calculate(lines)

	order := &models.Order{
		UserID:          user.ID,
		OrderItems:      items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		ItemsPrice:      totals.ItemsPrice,
		TaxPrice:        totals.TaxPrice,
		ShippingPrice:   totals.ShippingPrice,
		TotalPrice:      totals.TotalPrice,
	}
	if err := s.store.Create(ctx, order); err != nil {
		return utils.Internal("Could not create order", err)
	}

	order.User = user.Summary()
	s.events.Emit(ctx, mq.OrderCreated, "order", order.ID.Hex(), user.ID.Hex())
	s.log.Info("order created", "order_id", order.ID.Hex(), "user_id", user.ID.Hex(), "total", order.TotalPrice)
	utils.RespondWithJSON(w, http.StatusCreated, order)
	return nil
}

// load fetches an order the current user may act on: its owner or an admin.
func (s *Service) load(ctx context.Context, r *http.Request, rawID string) (*models.Order, error) {
	id, err := utils.ParseObjectID(rawID, "Order not found")
	if err != nil {
		return nil, err
	}
	o, err := s.store.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, utils.NotFound("Order not found")
	}
	if err != nil {
		return nil, utils.Internal("Could not load order", err)
	}

	user, ok := middleware.CurrentUser(r)
	if !ok || (!user.IsAdmin && !o.OwnedBy(user.ID)) {
		return nil, utils.Unauthorized("Not authorized to access this order")
	}
	return o, nil
}

func (s *Service) save(ctx context.Context, o *models.Order) error {
	if err := s.store.Update(ctx, o); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return utils.NotFound("Order not found")
		}
		return utils.Internal("Could not update order", err)
	}
	return nil
}

// populate attaches {_id, name, email} of each order's user.
func (s *Service) populate(ctx context.Context, list []models.Order) {
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, o := range list {
		if !seen[o.UserID] {
			seen[o.UserID] = true
			ids = append(ids, o.UserID)
		}
	}
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("populating order users failed", "err", err)
	}
	for i := range list {
		if u, ok := found[list[i].UserID]; ok {
			list[i].User = u.Summary()
		} else {
			list[i].User = &models.UserSummary{ID: list[i].UserID}
		}
	}
}

// Get handles GET /api/orders/:id
func (s *Service) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := s.load(ctx, r, ps.ByName("id"))
	if err != nil {
		return err
	}

	if o.ItemsPrice == 0 && len(o.OrderItems) > 0 {
		lines := make([]pricing.Line, 0, len(o.OrderItems))
		for _, item := range o.OrderItems {
			lines = append(lines, pricing.Line{Price: item.Price, Qty: item.Qty})
		}
		o.ItemsPrice = pricing.ItemsPrice(lines)
		if err := s.store.Update(ctx, o); err != nil {
			s.log.Warn("itemsPrice backfill failed", "order_id", o.ID.Hex(), "err", err)
		}
	}

	list := []models.Order{*o}
	s.reconciler.Reconcile(ctx, list)
	s.respondOne(ctx, w, &list[0])
	return nil
}

func (s *Service) respondOne(ctx context.Context, w http.ResponseWriter, o *models.Order) {
	list := []models.Order{*o}
	s.populate(ctx, list)
	utils.RespondWithJSON(w, http.StatusOK, list[0])
}

// Mine handles GET /api/orders/myorders
func (s *Service) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	user, _ := middleware.CurrentUser(r)
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := s.store.ListByUser(ctx, user.ID)
	if err != nil {
		return utils.Internal("Could not list orders", err)
	}
	s.reconciler.Reconcile(ctx, list)
	for i := range list {
		list[i].User = user.Summary()
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
	return nil
}

// List handles GET /api/orders (admin). Paging goes in the X-Pagination header.
func (s *Service) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	page := utils.ParsePage(r, defaultPageSize)
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, total, err := s.store.List(ctx, page)
	if err != nil {
		return utils.Internal("Could not list orders", err)
	}
	s.reconciler.Reconcile(ctx, list)
	s.populate(ctx, list)
	utils.SetPaginationHeader(w, page, total)
	utils.RespondWithJSON(w, http.StatusOK, list)
	return nil
}

// Pay handles PUT /api/orders/:id/pay with the PayPal capture payload.
func (s *Service) Pay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	var req paymentRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := s.load(ctx, r, ps.ByName("id"))
	if err != nil {
		return err
	}
	now := time.Now()
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentResult = &models.PaymentResult{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.Payer.EmailAddress,
	}
	if err := s.save(ctx, o); err != nil {
		return err
	}

	s.events.Emit(ctx, mq.OrderPaid, "order", o.ID.Hex(), o.UserID.Hex())
	s.log.Info("order paid", "order_id", o.ID.Hex(), "payment_id", req.ID)
	s.respondOne(ctx, w, o)
	return nil
}

// Deliver handles PUT /api/orders/:id/deliver (admin)
func (s *Service) Deliver(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := s.load(ctx, r, ps.ByName("id"))
	if err != nil {
		return err
	}
	now := time.Now()
	o.IsDelivered = true
	o.DeliveredAt = &now
	if err := s.save(ctx, o); err != nil {
		return err
	}

	s.events.Emit(ctx, mq.OrderDelivered, "order", o.ID.Hex(), o.UserID.Hex())
	s.respondOne(ctx, w, o)
	return nil
}
