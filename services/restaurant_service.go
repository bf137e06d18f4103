package services

import (
	"context"
	"strings"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type RestaurantFilter struct {
	Cuisine string
	Search  string
	Open    *bool
	Page
}

type MenuFilter struct {
	Category      models.MenuCategory
	Veg           *bool
	AvailableOnly bool
}

type MenuItemInput struct {
	Name        string
	Description string
	Price       float64
	Category    models.MenuCategory
	IsVeg       bool
	IsAvailable *bool
	PrepTime    int
	Position    *int
}

// MenuItemPatch changes only the fields that are set
type MenuItemPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *models.MenuCategory
	IsVeg       *bool
	IsAvailable *bool
	PrepTime    *int
	Position    *int
}

// RestaurantPatch holds the fields a vendor may change on their restaurant
type RestaurantPatch struct {
	Name            *string
	Description     *string
	Cuisine         *string
	Address         *string
	Phone           *string
	DeliveryTimeMin *int
	DeliveryTimeMax *int
	MinimumOrder    *float64
	DeliveryFee     *float64
	IsOpen          *bool
	Latitude        *float64
	Longitude       *float64
}

type RestaurantService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewRestaurantService(db *gorm.DB, log logrus.FieldLogger) *RestaurantService {
	return &RestaurantService{db: db, log: log}
}

// List returns active restaurants, best rated first
func (s *RestaurantService) List(ctx context.Context, f RestaurantFilter) ([]models.Restaurant, int64, error) {
	page := f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.Restaurant{}).Where("is_active = ?", true)
	if f.Cuisine != "" {
		q = q.Where("LOWER(cuisine) = ?", strings.ToLower(f.Cuisine))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(cuisine) LIKE ?", like, like)
	}
	if f.Open != nil {
		q = q.Where("is_open = ?", *f.Open)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Internal("failed to count restaurants", err)
	}
	var restaurants []models.Restaurant
	if err := q.Order("rating desc, id asc").Limit(page.Limit).Offset(page.offset()).Find(&restaurants).Error; err != nil {
		return nil, 0, apperr.Internal("failed to list restaurants", err)
	}
	return restaurants, total, nil
}

// Search matches name or cuisine
func (s *RestaurantService) Search(ctx context.Context, query string, page Page) ([]models.Restaurant, int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, apperr.Validation("Search query is required")
	}
	return s.List(ctx, RestaurantFilter{Search: query, Page: page})
}

// Get returns an active restaurant with its available menu
func (s *RestaurantService) Get(ctx context.Context, id uint) (*models.Restaurant, error) {
	var r models.Restaurant
	err := s.db.WithContext(ctx).
		Preload("MenuItems", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_available = ?", true).Order("position asc, id asc")
		}).
		Where("is_active = ?", true).
		First(&r, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Restaurant")
	}
	return &r, nil
}

// Menu returns a restaurant's menu items in display order
func (s *RestaurantService) Menu(ctx context.Context, restaurantID uint, f MenuFilter) ([]models.MenuItem, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Restaurant{}).Where("id = ? AND is_active = ?", restaurantID, true).Count(&count).Error; err != nil {
		return nil, apperr.Internal("failed to load restaurant", err)
	}
	if count == 0 {
		return nil, apperr.NotFound("Restaurant not found")
	}

	q := s.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID)
	if f.Category != "" {
		if !f.Category.Valid() {
			return nil, apperr.Validation("Invalid category %q", f.Category)
		}
		q = q.Where("category = ?", f.Category)
	}
	if f.Veg != nil {
		q = q.Where("is_veg = ?", *f.Veg)
	}
	if f.AvailableOnly {
		q = q.Where("is_available = ?", true)
	}
	var items []models.MenuItem
	if err := q.Order("position asc, id asc").Find(&items).Error; err != nil {
		return nil, apperr.Internal("failed to load menu", err)
	}
	return items, nil
}

// VendorRestaurant returns the restaurant owned by vendorID, menu included
func (s *RestaurantService) VendorRestaurant(ctx context.Context, actor Actor, vendorID uint) (*models.Restaurant, error) {
	restaurantID, err := s.ownedRestaurant(ctx, actor, vendorID)
	if err != nil {
		return nil, err
	}
	var r models.Restaurant
	err = s.db.WithContext(ctx).
		Preload("MenuItems", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		First(&r, restaurantID).Error
	if err != nil {
		return nil, notFoundOr(err, "Restaurant")
	}
	return &r, nil
}

// UpdateVendorRestaurant applies the safe subset of restaurant fields
func (s *RestaurantService) UpdateVendorRestaurant(ctx context.Context, actor Actor, vendorID uint, p RestaurantPatch) (*models.Restaurant, error) {
	restaurantID, err := s.ownedRestaurant(ctx, actor, vendorID)
	if err != nil {
		return nil, err
	}

	values := map[string]interface{}{}
	setString := func(col string, v *string) {
		if v != nil {
			values[col] = strings.TrimSpace(*v)
		}
	}
	setString("name", p.Name)
	setString("description", p.Description)
	setString("cuisine", p.Cuisine)
	setString("address", p.Address)
	setString("phone", p.Phone)
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, apperr.Validation("Restaurant name cannot be empty")
	}
	if p.DeliveryTimeMin != nil {
		values["delivery_time_min"] = *p.DeliveryTimeMin
	}
	if p.DeliveryTimeMax != nil {
		values["delivery_time_max"] = *p.DeliveryTimeMax
	}
	if p.DeliveryTimeMin != nil && p.DeliveryTimeMax != nil && *p.DeliveryTimeMin > *p.DeliveryTimeMax {
		return nil, apperr.Validation("deliveryTimeMin cannot exceed deliveryTimeMax")
	}
	if p.MinimumOrder != nil {
		if *p.MinimumOrder < 0 {
			return nil, apperr.Validation("minimumOrder cannot be negative")
		}
		values["minimum_order"] = *p.MinimumOrder
	}
	if p.DeliveryFee != nil {
		if *p.DeliveryFee < 0 {
			return nil, apperr.Validation("deliveryFee cannot be negative")
		}
		values["delivery_fee"] = *p.DeliveryFee
	}
	if p.IsOpen != nil {
		values["is_open"] = *p.IsOpen
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return nil, apperr.Validation("latitude and longitude must be given together")
	}
	if p.Latitude != nil {
		if *p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180 {
			return nil, apperr.Validation("Coordinates out of range")
		}
		values["latitude"] = *p.Latitude
		values["longitude"] = *p.Longitude
	}
	if len(values) == 0 {
		return nil, apperr.Validation("Nothing to update")
	}

	if err := s.db.WithContext(ctx).Model(&models.Restaurant{}).Where("id = ?", restaurantID).Updates(values).Error; err != nil {
		return nil, apperr.Internal("Failed to update restaurant", err)
	}
	return s.VendorRestaurant(ctx, actor, vendorID)
}

// AddMenuItem appends an item to the vendor's menu
func (s *RestaurantService) AddMenuItem(ctx context.Context, actor Actor, vendorID uint, in MenuItemInput) (*models.MenuItem, error) {
	restaurantID, err := s.ownedRestaurant(ctx, actor, vendorID)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("Item name is required")
	}
	if in.Price <= 0 {
		return nil, apperr.Validation("Price must be greater than zero")
	}
	if !in.Category.Valid() {
		return nil, apperr.Validation("Invalid category %q", in.Category)
	}

	item := &models.MenuItem{
		RestaurantID: restaurantID,
		Name:         in.Name,
		Description:  in.Description,
		Price:        in.Price,
		Category:     in.Category,
		IsVeg:        in.IsVeg,
		IsAvailable:  in.IsAvailable == nil || *in.IsAvailable,
		PrepTime:     in.PrepTime,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Position != nil {
			item.Position = *in.Position
		} else {
			var last struct{ Max *int }
			if err := tx.Model(&models.MenuItem{}).Select("MAX(position) AS max").
				Where("restaurant_id = ?", restaurantID).Scan(&last).Error; err != nil {
				return err
			}
			if last.Max != nil {
				item.Position = *last.Max + 1
			}
		}
		return tx.Create(item).Error
	})
	if err != nil {
		return nil, apperr.Internal("Failed to add menu item", err)
	}
	s.log.WithFields(logrus.Fields{"restaurant_id": restaurantID, "menu_item_id": item.ID}).Info("menu item added")
	return item, nil
}

// UpdateMenuItem changes an item of the vendor's menu
func (s *RestaurantService) UpdateMenuItem(ctx context.Context, actor Actor, vendorID, itemID uint, p MenuItemPatch) (*models.MenuItem, error) {
	item, err := s.ownedItem(ctx, actor, vendorID, itemID)
	if err != nil {
		return nil, err
	}
	values := map[string]interface{}{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Validation("Item name cannot be empty")
		}
		values["name"] = name
	}
	if p.Description != nil {
		values["description"] = *p.Description
	}
	if p.Price != nil {
		if *p.Price <= 0 {
			return nil, apperr.Validation("Price must be greater than zero")
		}
		values["price"] = *p.Price
	}
	if p.Category != nil {
		if !p.Category.Valid() {
			return nil, apperr.Validation("Invalid category %q", *p.Category)
		}
		values["category"] = *p.Category
	}
	if p.IsVeg != nil {
		values["is_veg"] = *p.IsVeg
	}
	if p.IsAvailable != nil {
		values["is_available"] = *p.IsAvailable
	}
	if p.PrepTime != nil {
		values["prep_time"] = *p.PrepTime
	}
	if p.Position != nil {
		values["position"] = *p.Position
	}
	if len(values) == 0 {
		return nil, apperr.Validation("Nothing to update")
	}
	if err := s.db.WithContext(ctx).Model(item).Updates(values).Error; err != nil {
		return nil, apperr.Internal("Failed to update menu item", err)
	}
	if err := s.db.WithContext(ctx).First(item, item.ID).Error; err != nil {
		return nil, apperr.Internal("failed to reload menu item", err)
	}
	return item, nil
}

// DeleteMenuItem removes an item; past orders keep their snapshot
func (s *RestaurantService) DeleteMenuItem(ctx context.Context, actor Actor, vendorID, itemID uint) error {
	item, err := s.ownedItem(ctx, actor, vendorID, itemID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(item).Error; err != nil {
		return apperr.Internal("Failed to delete menu item", err)
	}
	s.log.WithFields(logrus.Fields{"restaurant_id": item.RestaurantID, "menu_item_id": item.ID}).Info("menu item deleted")
	return nil
}

// ownedRestaurant resolves vendorID's restaurant, making sure a vendor only reaches their own
func (s *RestaurantService) ownedRestaurant(ctx context.Context, actor Actor, vendorID uint) (uint, error) {
	if !actor.Is(models.RoleAdmin) && !(actor.Is(models.RoleVendor) && actor.ID == vendorID) {
		return 0, apperr.Forbidden("You can only manage your own restaurant")
	}
	var vendor models.Vendor
	if err := s.db.WithContext(ctx).First(&vendor, vendorID).Error; err != nil {
		return 0, notFoundOr(err, "Vendor")
	}
	if vendor.RestaurantID == nil {
		return 0, apperr.NotFound("Vendor has no restaurant")
	}
	return *vendor.RestaurantID, nil
}

func (s *RestaurantService) ownedItem(ctx context.Context, actor Actor, vendorID, itemID uint) (*models.MenuItem, error) {
	restaurantID, err := s.ownedRestaurant(ctx, actor, vendorID)
	if err != nil {
		return nil, err
	}
	var item models.MenuItem
	if err := s.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID).First(&item, itemID).Error; err != nil {
		return nil, notFoundOr(err, "Menu item")
	}
	return &item, nil
}
