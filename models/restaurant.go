package models

import (
	"time"

	"food-marketplace-api/geo"
)

type Restaurant struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	VendorID        uint       `json:"vendorId" gorm:"index;not null"`
	Name            string     `json:"name" gorm:"not null"`
	Description     string     `json:"description"`
	Cuisine         string     `json:"cuisine"`
	Address         string     `json:"address"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email"`
	Rating          float64    `json:"rating" gorm:"default:0"`
	RatingCount     int        `json:"ratingCount" gorm:"default:0"`
	DeliveryTimeMin int        `json:"deliveryTimeMin" gorm:"default:30"`
	DeliveryTimeMax int        `json:"deliveryTimeMax" gorm:"default:45"`
	MinimumOrder    float64    `json:"minimumOrder"`
	DeliveryFee     float64    `json:"deliveryFee"`
	IsOpen          bool       `json:"isOpen"`
	IsActive        bool       `json:"isActive"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	MenuItems       []MenuItem `json:"menuItems,omitempty" gorm:"foreignKey:RestaurantID"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Location returns the restaurant's coordinates, if set
func (r *Restaurant) Location() (geo.Point, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *r.Latitude, Lng: *r.Longitude}, true
}

// AcceptingOrders reports whether new orders may be placed
func (r *Restaurant) AcceptingOrders() bool {
	return r.IsOpen && r.IsActive
}

// MenuCategory classifies a menu item
type MenuCategory string

const (
	CategoryStarter  MenuCategory = "Starter"
	CategoryMain     MenuCategory = "Main Course"
	CategoryDessert  MenuCategory = "Dessert"
	CategoryBeverage MenuCategory = "Beverage"
	CategorySide     MenuCategory = "Side"
	CategorySnack    MenuCategory = "Snack"
)

var MenuCategories = []MenuCategory{
	CategoryStarter, CategoryMain, CategoryDessert, CategoryBeverage, CategorySide, CategorySnack,
}

func (c MenuCategory) Valid() bool {
	for _, k := range MenuCategories {
		if k == c {
			return true
		}
	}
	return false
}

// MenuItem belongs to exactly one restaurant and has no lifecycle of its own
type MenuItem struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	RestaurantID uint         `json:"restaurantId" gorm:"index;not null"`
	Name         string       `json:"name" gorm:"not null"`
	Description  string       `json:"description"`
	Price        float64      `json:"price" gorm:"not null"`
	Category     MenuCategory `json:"category" gorm:"not null"`
	IsVeg        bool         `json:"isVeg"`
	IsAvailable  bool         `json:"isAvailable"`
	PrepTime     int          `json:"prepTime"` // minutes
	Position     int          `json:"position"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
