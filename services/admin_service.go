package services

import (
	"context"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dashboard is the admin overview
type Dashboard struct {
	Users            map[models.Role]int64        `json:"users"`
	Restaurants      int64                        `json:"restaurants"`
	OpenRestaurants  int64                        `json:"openRestaurants"`
	Orders           int64                        `json:"orders"`
	OrdersByStatus   map[models.OrderStatus]int64 `json:"ordersByStatus"`
	Revenue          float64                      `json:"revenue"`
	UnassignedOrders int64                        `json:"unassignedOrders"`
}

type AdminService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewAdminService(db *gorm.DB, log logrus.FieldLogger) *AdminService {
	return &AdminService{db: db, log: log}
}

var roleModels = map[models.Role]func() interface{}{
	models.RoleCustomer: func() interface{} { return &models.Customer{} },
	models.RoleVendor:   func() interface{} { return &models.Vendor{} },
	models.RoleDelivery: func() interface{} { return &models.DeliveryPerson{} },
	models.RoleAdmin:    func() interface{} { return &models.Admin{} },
}

// Dashboard counts accounts, restaurants and orders, and sums delivered revenue
func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	d := &Dashboard{
		Users:          make(map[models.Role]int64, len(models.Roles)),
		OrdersByStatus: make(map[models.OrderStatus]int64, len(models.OrderStatuses)),
	}

	for _, role := range models.Roles {
		var n int64
		if err := db.Model(roleModels[role]()).Count(&n).Error; err != nil {
			return nil, apperr.Internal("failed to count accounts", err)
		}
		d.Users[role] = n
	}

	if err := db.Model(&models.Restaurant{}).Count(&d.Restaurants).Error; err != nil {
		return nil, apperr.Internal("failed to count restaurants", err)
	}
	if err := db.Model(&models.Restaurant{}).Where("is_open = ? AND is_active = ?", true, true).Count(&d.OpenRestaurants).Error; err != nil {
		return nil, apperr.Internal("failed to count restaurants", err)
	}

	var rows []struct {
		Status models.OrderStatus
		Count  int64
	}
	if err := db.Model(&models.Order{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, apperr.Internal("failed to count orders", err)
	}
	for _, st := range models.OrderStatuses {
		d.OrdersByStatus[st] = 0
	}
	for _, r := range rows {
		d.OrdersByStatus[r.Status] = r.Count
		d.Orders += r.Count
	}

	var revenue struct{ Total *float64 }
	if err := db.Model(&models.Order{}).Select("SUM(total_amount) AS total").
		Where("status = ?", models.StatusDelivered).Scan(&revenue).Error; err != nil {
		return nil, apperr.Internal("failed to sum revenue", err)
	}
	if revenue.Total != nil {
		d.Revenue = roundMoney(*revenue.Total)
	}

	if err := db.Model(&models.Order{}).
		Where("status = ? AND delivery_person_id IS NULL AND is_active = ?", models.StatusOutForDelivery, true).
		Count(&d.UnassignedOrders).Error; err != nil {
		return nil, apperr.Internal("failed to count orders", err)
	}
	return d, nil
}

// Restaurants lists every restaurant, inactive ones included
func (s *AdminService) Restaurants(ctx context.Context, page Page) ([]models.Restaurant, int64, error) {
	page = page.normalize()
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Restaurant{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("failed to count restaurants", err)
	}
	var restaurants []models.Restaurant
	err := s.db.WithContext(ctx).Order("created_at desc, id desc").
		Limit(page.Limit).Offset(page.offset()).Find(&restaurants).Error
	if err != nil {
		return nil, 0, apperr.Internal("failed to list restaurants", err)
	}
	return restaurants, total, nil
}

// SetRestaurantActive suspends or reinstates a restaurant
func (s *AdminService) SetRestaurantActive(ctx context.Context, id uint, active bool) (*models.Restaurant, error) {
	res := s.db.WithContext(ctx).Model(&models.Restaurant{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return nil, apperr.Internal("Failed to update restaurant", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("Restaurant not found")
	}
	var r models.Restaurant
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFoundOr(err, "Restaurant")
	}
	s.log.WithFields(logrus.Fields{"restaurant_id": id, "active": active}).Info("restaurant status changed")
	return &r, nil
}

// Users lists accounts of one role
func (s *AdminService) Users(ctx context.Context, role models.Role, page Page) (interface{}, int64, error) {
	if role == "" {
		role = models.RoleCustomer
	}
	newModel, ok := roleModels[role]
	if !ok {
		return nil, 0, apperr.Validation("Invalid role %q", role)
	}
	page = page.normalize()

	var total int64
	if err := s.db.WithContext(ctx).Model(newModel()).Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("failed to count users", err)
	}

	var out interface{}
	switch role {
	case models.RoleCustomer:
		out = &[]models.Customer{}
	case models.RoleVendor:
		out = &[]models.Vendor{}
	case models.RoleDelivery:
		out = &[]models.DeliveryPerson{}
	case models.RoleAdmin:
		out = &[]models.Admin{}
	}
	err := s.db.WithContext(ctx).Order("id asc").Limit(page.Limit).Offset(page.offset()).Find(out).Error
	if err != nil {
		return nil, 0, apperr.Internal("failed to list users", err)
	}
	return out, total, nil
}

// SetUserActive activates or deactivates an account; deactivated accounts cannot log in
func (s *AdminService) SetUserActive(ctx context.Context, role models.Role, id uint, active bool) error {
	newModel, ok := roleModels[role]
	if !ok {
		return apperr.Validation("Invalid role %q", role)
	}
	values := map[string]interface{}{"is_active": active}
	if role == models.RoleDelivery && !active {
		values["is_available"] = false
	}
	res := s.db.WithContext(ctx).Model(newModel()).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return apperr.Internal("Failed to update account", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Account not found")
	}
	s.log.WithFields(logrus.Fields{"role": role, "account_id": id, "active": active}).Info("account status changed")
	return nil
}
