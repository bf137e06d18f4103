package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/events"
	"food-marketplace-api/models"
	"food-marketplace-api/notify"
	"food-marketplace-api/otp"
	"food-marketplace-api/statemachine"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type OrderItemInput struct {
	MenuItemID *uint
	Name       string
	Price      float64
	Quantity   int
}

type PlaceOrderInput struct {
	RestaurantID    uint
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	CustomerEmail   string
	Items           []OrderItemInput
	// TotalAmount is the client's figure; the server recomputes it from the items
	TotalAmount   float64
	Notes         string
	PaymentMethod models.PaymentMethod
}

// PlacedOrder is returned by PlaceOrder. OTP is for debug echo only.
type PlacedOrder struct {
	Order             *models.Order
	EstimatedDelivery time.Time
	OTP               string
	OTPExpiresAt      time.Time
}

// OrderFilter narrows a listing. Role and UserID only apply to admin callers.
type OrderFilter struct {
	Role   models.Role
	UserID uint
	Status models.OrderStatus
	Page
}

type OrderService struct {
	db         *gorm.DB
	dispatcher *Dispatcher
	notifier   notify.Notifier
	events     events.Publisher
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewOrderService(db *gorm.DB, dispatcher *Dispatcher, notifier notify.Notifier, publisher events.Publisher, log logrus.FieldLogger) *OrderService {
	return &OrderService{
		db:         db,
		dispatcher: dispatcher,
		notifier:   notifier,
		events:     publisher,
		log:        log,
		now:        time.Now,
	}
}

// PlaceOrder validates and stores a new order in "Order Placed" with a fresh delivery code
func (s *OrderService) PlaceOrder(ctx context.Context, actor Actor, in PlaceOrderInput) (*PlacedOrder, error) {
	if err := validatePlaceOrder(&in); err != nil {
		return nil, err
	}

	// Validate restaurant exists and is open
	var restaurant models.Restaurant
	if err := s.db.WithContext(ctx).First(&restaurant, in.RestaurantID).Error; err != nil {
		return nil, notFoundOr(err, "Restaurant")
	}
	if !restaurant.AcceptingOrders() {
		return nil, apperr.BusinessRule("Restaurant is currently not accepting orders")
	}

	items, subtotal, err := s.buildItems(ctx, restaurant.ID, in.Items)
	if err != nil {
		return nil, err
	}
	if subtotal < restaurant.MinimumOrder {
		return nil, apperr.BusinessRule("Minimum order amount is %.2f, order subtotal is %.2f", restaurant.MinimumOrder, subtotal)
	}
	total := roundMoney(subtotal + restaurant.DeliveryFee)
	if in.TotalAmount > 0 && math.Abs(in.TotalAmount-total) > 0.009 {
		s.log.WithFields(logrus.Fields{"declared": in.TotalAmount, "computed": total}).Debug("client total differs from computed total")
	}

	code, err := otp.Generate(otp.OrderDigits)
	if err != nil {
		return nil, apperr.Internal("failed to generate delivery code", err)
	}
	now := s.now()
	expiresAt := now.Add(otp.TTL)

	order := &models.Order{
		OrderNumber:     newOrderNumber(now),
		RestaurantID:    restaurant.ID,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerAddress: in.CustomerAddress,
		CustomerEmail:   normalizeEmail(in.CustomerEmail),
		Items:           items,
		Subtotal:        subtotal,
		DeliveryFee:     restaurant.DeliveryFee,
		TotalAmount:     total,
		Notes:           in.Notes,
		PaymentMethod:   in.PaymentMethod,
		Status:          models.StatusPlaced,
		OTP:             models.OTP{Code: code, ExpiresAt: &expiresAt},
		IsActive:        true,
	}
	if actor.Is(models.RoleCustomer) {
		id := actor.ID
		order.CustomerID = &id
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  models.StatusPlaced,
			ActorRole: string(actor.Role),
			ActorID:   actor.ID,
			Note:      "Order placed",
		}).Error
	})
	if err != nil {
		return nil, apperr.Internal("Failed to place order", err)
	}
	order.Restaurant = &restaurant

	// the delivery code is best-effort: a failed send never fails the order
	if order.CustomerEmail != "" {
		if err := s.notifier.SendOTP(ctx, order.CustomerEmail, notify.PurposeDelivery, code, expiresAt); err != nil {
			s.log.WithError(err).WithField("order_id", order.ID).Warn("delivery code could not be sent")
		}
	}
	s.publish(ctx, events.OrderPlaced, order, actor)

	s.log.WithFields(logrus.Fields{
		"order_id":      order.ID,
		"order_number":  order.OrderNumber,
		"restaurant_id": order.RestaurantID,
		"total":         order.TotalAmount,
	}).Info("order placed")

	eta := restaurant.DeliveryTimeMax
	if eta <= 0 {
		eta = 45
	}
	return &PlacedOrder{
		Order:             order,
		EstimatedDelivery: now.Add(time.Duration(eta) * time.Minute),
		OTP:               code,
		OTPExpiresAt:      expiresAt,
	}, nil
}

func validatePlaceOrder(in *PlaceOrderInput) error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.CustomerAddress = strings.TrimSpace(in.CustomerAddress)
	if in.RestaurantID == 0 {
		return apperr.Validation("restaurantId is required")
	}
	if in.CustomerName == "" || in.CustomerPhone == "" || in.CustomerAddress == "" {
		return apperr.Validation("Customer name, phone and address are required")
	}
	if len(in.Items) == 0 {
		return apperr.Validation("Order must contain at least one item")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentCash
	}
	switch in.PaymentMethod {
	case models.PaymentCash, models.PaymentCard, models.PaymentUPI, models.PaymentWallet:
	default:
		return apperr.Validation("Invalid payment method %q", in.PaymentMethod)
	}
	return nil
}

// buildItems snapshots every line. Menu references take name and price from the menu.
func (s *OrderService) buildItems(ctx context.Context, restaurantID uint, in []OrderItemInput) ([]models.OrderItem, float64, error) {
	items := make([]models.OrderItem, 0, len(in))
	var subtotal float64
	for i, it := range in {
		if it.Quantity < 1 {
			return nil, 0, apperr.Validation("Item %d: quantity must be at least 1", i+1)
		}
		name, price := strings.TrimSpace(it.Name), it.Price
		if it.MenuItemID != nil {
			var menuItem models.MenuItem
			if err := s.db.WithContext(ctx).First(&menuItem, *it.MenuItemID).Error; err != nil {
				if isNotFound(err) {
					return nil, 0, apperr.Validation("Item %d: menu item %d not found", i+1, *it.MenuItemID)
				}
				return nil, 0, apperr.Internal("failed to load menu item", err)
			}
			if menuItem.RestaurantID != restaurantID {
				return nil, 0, apperr.Validation("Item %d: menu item does not belong to this restaurant", i+1)
			}
			if !menuItem.IsAvailable {
				return nil, 0, apperr.BusinessRule("Menu item '%s' is not available", menuItem.Name)
			}
			name, price = menuItem.Name, menuItem.Price
		}
		if name == "" || price <= 0 {
			return nil, 0, apperr.Validation("Item %d: name and a positive price are required", i+1)
		}
		line := roundMoney(price * float64(it.Quantity))
		subtotal += line
		items = append(items, models.OrderItem{
			MenuItemID: it.MenuItemID,
			Name:       name,
			Price:      price,
			Quantity:   it.Quantity,
			LineTotal:  line,
		})
	}
	return items, roundMoney(subtotal), nil
}

// ListOrders returns the caller's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, f OrderFilter) ([]models.Order, int64, error) {
	page := f.Page.normalize()
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("Invalid status %q", f.Status)
	}

	scopeRole, scopeID := actor.Role, actor.ID
	if actor.Is(models.RoleAdmin) {
		scopeRole, scopeID = f.Role, f.UserID
		if scopeRole != "" && !scopeRole.Valid() {
			return nil, 0, apperr.Validation("Invalid role %q", scopeRole)
		}
	}
	scope, err := s.scope(ctx, scopeRole, scopeID)
	if err != nil {
		return nil, 0, err
	}

	q := s.db.WithContext(ctx).Model(&models.Order{}).Scopes(scope)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("failed to count orders", err)
	}

	var orders []models.Order
	err = q.Preload("Items").Preload("Restaurant").
		Order("created_at desc, id desc").
		Limit(page.Limit).Offset(page.offset()).
		Find(&orders).Error
	if err != nil {
		return nil, 0, apperr.Internal("failed to list orders", err)
	}
	return orders, total, nil
}

// scope limits a query to the orders a role/id pair is party to. An empty role means no restriction.
func (s *OrderService) scope(ctx context.Context, role models.Role, id uint) (func(*gorm.DB) *gorm.DB, error) {
	switch {
	case role == "" || (role == models.RoleAdmin):
		return func(db *gorm.DB) *gorm.DB { return db }, nil
	case id == 0:
		return nil, apperr.Validation("userId is required when filtering by role")
	case role == models.RoleCustomer:
		return func(db *gorm.DB) *gorm.DB { return db.Where("customer_id = ?", id) }, nil
	case role == models.RoleDelivery:
		return func(db *gorm.DB) *gorm.DB { return db.Where("delivery_person_id = ?", id) }, nil
	case role == models.RoleVendor:
		restaurantID, err := s.vendorRestaurantID(ctx, id)
		if err != nil {
			return nil, err
		}
		return func(db *gorm.DB) *gorm.DB { return db.Where("restaurant_id = ?", restaurantID) }, nil
	}
	return nil, apperr.Validation("Invalid role %q", role)
}

func (s *OrderService) vendorRestaurantID(ctx context.Context, vendorID uint) (uint, error) {
	var vendor models.Vendor
	if err := s.db.WithContext(ctx).First(&vendor, vendorID).Error; err != nil {
		return 0, notFoundOr(err, "Vendor")
	}
	if vendor.RestaurantID == nil {
		return 0, apperr.NotFound("Vendor has no restaurant")
	}
	return *vendor.RestaurantID, nil
}

// GetOrder returns an order with its items, restaurant, delivery person and history
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Restaurant").
		Preload("DeliveryPerson").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc, id asc") }).
		First(&order, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Order")
	}
	if err := s.authorize(ctx, actor, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// authorize checks that a non-admin actor is party to the order
func (s *OrderService) authorize(ctx context.Context, actor Actor, order *models.Order) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleCustomer:
		if order.CustomerID != nil && *order.CustomerID == actor.ID {
			return nil
		}
	case models.RoleDelivery:
		if order.DeliveryPersonID != nil && *order.DeliveryPersonID == actor.ID {
			return nil
		}
	case models.RoleVendor:
		restaurantID, err := s.vendorRestaurantID(ctx, actor.ID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		if err == nil && restaurantID == order.RestaurantID {
			return nil
		}
	}
	return apperr.Forbidden("This order does not belong to you")
}

func (s *OrderService) load(ctx context.Context, actor Actor, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, notFoundOr(err, "Order")
	}
	if err := s.authorize(ctx, actor, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// checkTransition explains a refused transition: terminal and out-of-sequence moves
// break a business rule, moves only another role may make are forbidden.
func checkTransition(from, to models.OrderStatus, actor Actor) error {
	err := statemachine.CanTransition(from, to, actor.machineActor())
	if err == nil {
		return nil
	}
	if from.Terminal() {
		return apperr.BusinessRule("Order is already %s; no further status changes are allowed", from)
	}
	if actor.Role != models.RoleAdmin && statemachine.CanTransition(from, to, statemachine.ActorAdmin) == nil {
		return apperr.Forbidden("A %s cannot move an order from %s to %s", actor.Role, from, to)
	}
	return apperr.BusinessRule("%s", err.Error())
}

// UpdateStatus moves an order one step along the lifecycle. Reaching
// "Out for Delivery" without a delivery person triggers an immediate assignment;
// when nobody is in range the order stays queued for the sweep.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, id uint, to models.OrderStatus, note string) (*models.Order, *Assignment, error) {
	if !to.Valid() {
		return nil, nil, apperr.Validation("Invalid status %q", to)
	}
	order, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if to == models.StatusCancelled {
		order, err = s.cancel(ctx, actor, order, note)
		return order, nil, err
	}
	if err := checkTransition(order.Status, to, actor); err != nil {
		return nil, nil, err
	}

	if to == models.StatusDelivered {
		if err := s.markDelivered(ctx, actor, order, false, note); err != nil {
			return nil, nil, err
		}
	} else if err := s.transition(ctx, actor, order, to, nil, note); err != nil {
		return nil, nil, err
	}

	var assignment *Assignment
	if to == models.StatusOutForDelivery && order.DeliveryPersonID == nil {
		a, err := s.dispatcher.AssignOrder(ctx, order.ID)
		if err != nil {
			s.log.WithError(err).WithField("order_id", order.ID).Warn("on-demand assignment failed")
		} else {
			assignment = &a
		}
	}

	fresh, err := s.GetOrder(ctx, Actor{Role: models.RoleAdmin}, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return fresh, assignment, nil
}

// transition writes the new status only if nobody changed it meanwhile, and records history
func (s *OrderService) transition(ctx context.Context, actor Actor, order *models.Order, to models.OrderStatus, extra map[string]interface{}, note string) error {
	from := order.Status
	values := map[string]interface{}{"status": to}
	for k, v := range extra {
		values[k] = v
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, from).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Order status changed meanwhile, please reload and retry")
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   to,
			ActorRole:  string(actor.Role),
			ActorID:    actor.ID,
			Note:       note,
		}).Error
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return err
		}
		return apperr.Internal("Failed to update order status", err)
	}
	order.Status = to

	t := events.OrderStatusChanged
	switch to {
	case models.StatusDelivered:
		t = events.OrderDelivered
	case models.StatusCancelled:
		t = events.OrderCancelled
	}
	s.publish(ctx, t, order, actor)
	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       to,
		"role":     actor.Role,
	}).Info("order status changed")
	return nil
}

// VerifyOTP confirms delivery with the code the customer received
func (s *OrderService) VerifyOTP(ctx context.Context, actor Actor, id uint, code string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, notFoundOr(err, "Order")
	}
	switch actor.Role {
	case models.RoleDelivery:
		if order.DeliveryPersonID == nil || *order.DeliveryPersonID != actor.ID {
			return nil, apperr.Forbidden("This order is not assigned to you")
		}
	case models.RoleVendor, models.RoleAdmin:
		if err := s.authorize(ctx, actor, &order); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Forbidden("Only the delivery person, vendor or admin can confirm delivery")
	}

	if !order.OTP.Issued() {
		return nil, apperr.BusinessRule("No OTP was generated for this order")
	}
	if order.OTP.Verified {
		return nil, apperr.BusinessRule("OTP has already been verified")
	}
	if order.Status != models.StatusOutForDelivery {
		return nil, apperr.BusinessRule("Order must be %s to confirm delivery, it is %s", models.StatusOutForDelivery, order.Status)
	}
	if order.OTP.Expired(s.now()) {
		return nil, apperr.Validation("OTP has expired")
	}
	if !otp.Match(order.OTP.Code, code) {
		return nil, apperr.Validation("Invalid OTP")
	}

	if err := s.markDelivered(ctx, actor, &order, true, "Delivery confirmed with OTP"); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, Actor{Role: models.RoleAdmin}, order.ID)
}

// markDelivered finishes an order and credits the assigned delivery person
// their commission on the order total.
func (s *OrderService) markDelivered(ctx context.Context, actor Actor, order *models.Order, viaOTP bool, note string) error {
	now := s.now()
	values := map[string]interface{}{"status": models.StatusDelivered, "delivered_at": now}
	if viaOTP {
		values["otp_verified"] = true
	}
	from := order.Status
	machineActor := actor
	if viaOTP {
		machineActor = Actor{Role: "system", ID: actor.ID}
	}

	var credited float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, from)
		if viaOTP {
			q = q.Where("otp_verified = ?", false)
		}
		res := q.Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Order status changed meanwhile, please reload and retry")
		}
		if err := tx.Create(&models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   models.StatusDelivered,
			ActorRole:  string(machineActor.Role),
			ActorID:    actor.ID,
			Note:       note,
		}).Error; err != nil {
			return err
		}

		if order.DeliveryPersonID == nil {
			return nil
		}
		var person models.DeliveryPerson
		if err := tx.Select("id", "commission_pct").First(&person, *order.DeliveryPersonID).Error; err != nil {
			return err
		}
		credited = roundMoney(order.TotalAmount * person.CommissionPct / 100)
		return tx.Model(&models.DeliveryPerson{}).Where("id = ?", person.ID).Updates(map[string]interface{}{
			"total_earnings":   gorm.Expr("total_earnings + ?", credited),
			"total_deliveries": gorm.Expr("total_deliveries + ?", 1),
		}).Error
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return err
		}
		return apperr.Internal("Failed to mark order delivered", err)
	}

	order.Status = models.StatusDelivered
	order.DeliveredAt = &now
	if viaOTP {
		order.OTP.Verified = true
	}
	s.publish(ctx, events.OrderDelivered, order, machineActor)

	entry := s.log.WithFields(logrus.Fields{"order_id": order.ID, "via_otp": viaOTP})
	if order.DeliveryPersonID != nil {
		entry = entry.WithFields(logrus.Fields{"delivery_person_id": *order.DeliveryPersonID, "commission": credited})
	}
	entry.Info("order delivered")
	return nil
}

// Cancel stops an order that has not reached a terminal state
func (s *OrderService) Cancel(ctx context.Context, actor Actor, id uint, reason string) (*models.Order, error) {
	order, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, actor, order, reason)
}

func (s *OrderService) cancel(ctx context.Context, actor Actor, order *models.Order, reason string) (*models.Order, error) {
	if err := checkTransition(order.Status, models.StatusCancelled, actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	note := reason
	if note == "" {
		note = fmt.Sprintf("Cancelled by %s", actor.Role)
	}
	if err := s.transition(ctx, actor, order, models.StatusCancelled, map[string]interface{}{"cancel_reason": reason}, note); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, Actor{Role: models.RoleAdmin}, order.ID)
}

// Rate records the customer's rating once and folds it into the restaurant's running mean
func (s *OrderService) Rate(ctx context.Context, actor Actor, id uint, rating int, review string) (*models.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, apperr.Validation("Rating must be between 1 and 5")
	}
	if !actor.Is(models.RoleCustomer) && !actor.Is(models.RoleAdmin) {
		return nil, apperr.Forbidden("Only customers can rate orders")
	}
	order, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusDelivered {
		return nil, apperr.BusinessRule("Only delivered orders can be rated")
	}
	if order.Rating != nil {
		return nil, apperr.BusinessRule("Order has already been rated")
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND rating IS NULL", order.ID).
			Updates(map[string]interface{}{"rating": rating, "review": strings.TrimSpace(review), "rated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.BusinessRule("Order has already been rated")
		}
		// keys are applied in sorted order, so rating is computed from the old count
		return tx.Model(&models.Restaurant{}).Where("id = ?", order.RestaurantID).Updates(map[string]interface{}{
			"rating":       gorm.Expr("(rating * rating_count + ?) / (rating_count + 1)", float64(rating)),
			"rating_count": gorm.Expr("rating_count + 1"),
		}).Error
	})
	if err != nil {
		if apperr.Is(err, apperr.KindBusinessRule) {
			return nil, err
		}
		return nil, apperr.Internal("Failed to rate order", err)
	}

	order.Rating = &rating
	s.publish(ctx, events.OrderRated, order, actor)
	return s.GetOrder(ctx, Actor{Role: models.RoleAdmin}, order.ID)
}

func (s *OrderService) publish(ctx context.Context, t events.Type, order *models.Order, actor Actor) {
	e := events.New(t, order.ID, order.OrderNumber)
	e.RestaurantID = order.RestaurantID
	e.Status = string(order.Status)
	e.DeliveryPersonID = order.DeliveryPersonID
	e.Actor = string(actor.Role)
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"order_id": order.ID, "event": t}).Warn("order event not published")
	}
}

// newOrderNumber builds ORD-YYYYMMDD-XXXXXX
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
