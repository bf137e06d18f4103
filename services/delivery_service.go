package services

import (
	"context"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/geo"
	"food-marketplace-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type DeliveryService struct {
	db      *gorm.DB
	locator Locator
	orders  *OrderService
	log     logrus.FieldLogger
}

func NewDeliveryService(db *gorm.DB, locator Locator, orders *OrderService, log logrus.FieldLogger) *DeliveryService {
	return &DeliveryService{db: db, locator: locator, orders: orders, log: log}
}

// UpdateLocation stores the delivery person's current position
func (s *DeliveryService) UpdateLocation(ctx context.Context, actor Actor, personID uint, p geo.Point) (*models.DeliveryPerson, error) {
	if !p.Valid() {
		return nil, apperr.Validation("Coordinates out of range")
	}
	now := time.Now()
	return s.update(ctx, actor, personID, map[string]interface{}{
		"latitude":            p.Lat,
		"longitude":           p.Lng,
		"location_updated_at": now,
	})
}

// UpdateAvailability toggles whether the person can be dispatched
func (s *DeliveryService) UpdateAvailability(ctx context.Context, actor Actor, personID uint, available bool) (*models.DeliveryPerson, error) {
	return s.update(ctx, actor, personID, map[string]interface{}{"is_available": available})
}

func (s *DeliveryService) update(ctx context.Context, actor Actor, personID uint, values map[string]interface{}) (*models.DeliveryPerson, error) {
	if err := s.self(actor, personID); err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.DeliveryPerson{}).Where("id = ?", personID).Updates(values)
	if res.Error != nil {
		return nil, apperr.Internal("Failed to update delivery person", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("Delivery person not found")
	}

	var person models.DeliveryPerson
	if err := s.db.WithContext(ctx).First(&person, personID).Error; err != nil {
		return nil, notFoundOr(err, "Delivery person")
	}
	// the locator is an index; the table stays the source of truth
	if err := s.locator.Track(ctx, &person); err != nil {
		s.log.WithError(err).WithField("delivery_person_id", personID).Warn("locator not updated")
	}
	return &person, nil
}

// Orders lists orders assigned to the delivery person
func (s *DeliveryService) Orders(ctx context.Context, actor Actor, personID uint, status models.OrderStatus, page Page) ([]models.Order, int64, error) {
	if err := s.self(actor, personID); err != nil {
		return nil, 0, err
	}
	f := OrderFilter{Status: status, Page: page}
	caller := actor
	if actor.Is(models.RoleAdmin) {
		f.Role, f.UserID = models.RoleDelivery, personID
	}
	return s.orders.ListOrders(ctx, caller, f)
}

func (s *DeliveryService) self(actor Actor, personID uint) error {
	if actor.Is(models.RoleAdmin) || (actor.Is(models.RoleDelivery) && actor.ID == personID) {
		return nil
	}
	return apperr.Forbidden("You can only act on your own delivery account")
}
