package models

import (
	"time"

	"food-marketplace-api/geo"
)

// Role defines the account kinds in the marketplace
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

// Roles lists every role in a stable order
var Roles = []Role{RoleCustomer, RoleVendor, RoleDelivery, RoleAdmin}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleDelivery, RoleAdmin:
		return true
	}
	return false
}

// SelfRegistering reports whether accounts of this role may sign up on their own.
// Admins are seeded, never registered.
func (r Role) SelfRegistering() bool {
	return r == RoleCustomer || r == RoleVendor || r == RoleDelivery
}

// OTP is a one-time numeric code with an expiry
type OTP struct {
	Code      string     `json:"code,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Verified  bool       `json:"verified"`
}

// Issued reports whether a code has ever been generated
func (o OTP) Issued() bool {
	return o.Code != "" && o.ExpiresAt != nil
}

// Expired reports whether the code's expiry has passed at now
func (o OTP) Expired(now time.Time) bool {
	return o.ExpiresAt == nil || now.After(*o.ExpiresAt)
}

// Credentials holds the identity fields shared by every account kind.
// It is embedded so each role keeps its own table.
type Credentials struct {
	Name            string     `json:"name" gorm:"not null"`
	Email           string     `json:"email" gorm:"uniqueIndex;not null"`
	Phone           string     `json:"phone" gorm:"uniqueIndex;not null"`
	PasswordHash    string     `json:"-" gorm:"not null"`
	IsActive        bool       `json:"isActive"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	ResetOTP        OTP        `json:"-" gorm:"embedded;embeddedPrefix:reset_otp_"`
	VerifyOTP       OTP        `json:"-" gorm:"embedded;embeddedPrefix:verify_otp_"`
}

// Account is implemented by every persisted account model
type Account interface {
	AccountID() uint
	AccountRole() Role
	Creds() *Credentials
}

type Customer struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	Credentials `gorm:"embedded"`
	Addresses   []Address `json:"addresses,omitempty" gorm:"foreignKey:CustomerID"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c *Customer) AccountID() uint     { return c.ID }
func (c *Customer) AccountRole() Role   { return RoleCustomer }
func (c *Customer) Creds() *Credentials { return &c.Credentials }

// Address is a saved delivery address of a customer
type Address struct {
	ID         uint     `json:"id" gorm:"primaryKey"`
	CustomerID uint     `json:"customerId" gorm:"index;not null"`
	Label      string   `json:"label"`
	Line       string   `json:"line" gorm:"not null"`
	City       string   `json:"city"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	IsDefault  bool     `json:"isDefault"`
}

type Vendor struct {
	ID            uint `json:"id" gorm:"primaryKey"`
	Credentials   `gorm:"embedded"`
	PinHash       string    `json:"-"`
	RestaurantID  *uint     `json:"restaurantId"`
	CommissionPct float64   `json:"commissionPct" gorm:"default:15"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (v *Vendor) AccountID() uint     { return v.ID }
func (v *Vendor) AccountRole() Role   { return RoleVendor }
func (v *Vendor) Creds() *Credentials { return &v.Credentials }

type DeliveryPerson struct {
	ID                uint `json:"id" gorm:"primaryKey"`
	Credentials       `gorm:"embedded"`
	VehicleType       string     `json:"vehicleType"`
	VehicleNumber     string     `json:"vehicleNumber"`
	IsAvailable       bool       `json:"isAvailable" gorm:"index"`
	Latitude          *float64   `json:"latitude,omitempty" gorm:"index"`
	Longitude         *float64   `json:"longitude,omitempty" gorm:"index"`
	LocationUpdatedAt *time.Time `json:"locationUpdatedAt,omitempty"`
	TotalEarnings     float64    `json:"totalEarnings" gorm:"default:0"`
	TotalDeliveries   int        `json:"totalDeliveries" gorm:"default:0"`
	CommissionPct     float64    `json:"commissionPct" gorm:"default:10"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (d *DeliveryPerson) AccountID() uint     { return d.ID }
func (d *DeliveryPerson) AccountRole() Role   { return RoleDelivery }
func (d *DeliveryPerson) Creds() *Credentials { return &d.Credentials }

// Location returns the current position, if one was ever reported
func (d *DeliveryPerson) Location() (geo.Point, bool) {
	if d.Latitude == nil || d.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *d.Latitude, Lng: *d.Longitude}, true
}

// AdminPermissions is the fixed permission set granted to every admin
var AdminPermissions = []string{
	"manage_restaurants",
	"manage_orders",
	"manage_users",
	"view_dashboard",
	"run_dispatch",
}

type Admin struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	Credentials `gorm:"embedded"`
	Permissions []string  `json:"permissions" gorm:"serializer:json"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (a *Admin) AccountID() uint     { return a.ID }
func (a *Admin) AccountRole() Role   { return RoleAdmin }
func (a *Admin) Creds() *Credentials { return &a.Credentials }
