package services

import (
	"context"
	"errors"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	"gorm.io/gorm"
)

// OTPSlot names which account-level code is being written
type OTPSlot string

const (
	SlotReset  OTPSlot = "reset_otp_"
	SlotVerify OTPSlot = "verify_otp_"
)

// AccountStore is the per-role persistence used by the auth workflow
type AccountStore interface {
	Role() models.Role
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id uint) (models.Account, error)
	Exists(ctx context.Context, email, phone string) (bool, error)
	Create(ctx context.Context, reg PendingRegistration) (models.Account, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error
	SetOTP(ctx context.Context, id uint, slot OTPSlot, o models.OTP) error
	SetPassword(ctx context.Context, id uint, hash string) error
	MarkEmailVerified(ctx context.Context, id uint) error
}

// AccountStores maps every role onto its store
type AccountStores map[models.Role]AccountStore

func NewAccountStores(db *gorm.DB) AccountStores {
	stores := []AccountStore{
		&gormAccounts[models.Customer, *models.Customer]{db: db, role: models.RoleCustomer, create: createCustomer},
		&gormAccounts[models.Vendor, *models.Vendor]{db: db, role: models.RoleVendor, create: createVendor},
		&gormAccounts[models.DeliveryPerson, *models.DeliveryPerson]{db: db, role: models.RoleDelivery, create: createDeliveryPerson},
		&gormAccounts[models.Admin, *models.Admin]{db: db, role: models.RoleAdmin},
	}
	m := make(AccountStores, len(stores))
	for _, s := range stores {
		m[s.Role()] = s
	}
	return m
}

// For returns the store of a role, or a validation error for unknown roles
func (s AccountStores) For(role models.Role) (AccountStore, error) {
	store, ok := s[role]
	if !ok {
		return nil, apperr.Validation("Invalid role %q", role)
	}
	return store, nil
}

type accountModel[T any] interface {
	*T
	models.Account
}

type gormAccounts[T any, P accountModel[T]] struct {
	db   *gorm.DB
	role models.Role
	// create persists a new account inside tx; nil for roles that cannot register
	create func(tx *gorm.DB, reg PendingRegistration) (P, error)
}

func (s *gormAccounts[T, P]) Role() models.Role { return s.role }

func (s *gormAccounts[T, P]) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	rec := P(new(T))
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *gormAccounts[T, P]) FindByID(ctx context.Context, id uint) (models.Account, error) {
	rec := P(new(T))
	if err := s.db.WithContext(ctx).First(rec, id).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *gormAccounts[T, P]) Exists(ctx context.Context, email, phone string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(P(new(T))).
		Where("email = ? OR phone = ?", normalizeEmail(email), phone).
		Count(&n).Error
	return n > 0, err
}

func (s *gormAccounts[T, P]) Create(ctx context.Context, reg PendingRegistration) (models.Account, error) {
	if s.create == nil {
		return nil, apperr.Forbidden("%s accounts cannot self-register", s.role)
	}
	var created P
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.create(tx, reg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *gormAccounts[T, P]) update(ctx context.Context, id uint, values map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(P(new(T))).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *gormAccounts[T, P]) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return s.update(ctx, id, map[string]interface{}{"last_login": at})
}

func (s *gormAccounts[T, P]) SetOTP(ctx context.Context, id uint, slot OTPSlot, o models.OTP) error {
	prefix := string(slot)
	return s.update(ctx, id, map[string]interface{}{
		prefix + "code":       o.Code,
		prefix + "expires_at": o.ExpiresAt,
		prefix + "verified":   o.Verified,
	})
}

func (s *gormAccounts[T, P]) SetPassword(ctx context.Context, id uint, hash string) error {
	return s.update(ctx, id, map[string]interface{}{
		"password_hash":        hash,
		"reset_otp_code":       "",
		"reset_otp_expires_at": nil,
		"reset_otp_verified":   true,
	})
}

func (s *gormAccounts[T, P]) MarkEmailVerified(ctx context.Context, id uint) error {
	return s.update(ctx, id, map[string]interface{}{
		"is_email_verified":     true,
		"verify_otp_code":       "",
		"verify_otp_expires_at": nil,
		"verify_otp_verified":   true,
	})
}

func credentialsFrom(reg PendingRegistration) models.Credentials {
	return models.Credentials{
		Name:         reg.Name,
		Email:        normalizeEmail(reg.Email),
		Phone:        reg.Phone,
		PasswordHash: reg.PasswordHash,
		IsActive:     true,
		// the registration code went to this address
		IsEmailVerified: true,
	}
}

func createCustomer(tx *gorm.DB, reg PendingRegistration) (*models.Customer, error) {
	c := &models.Customer{Credentials: credentialsFrom(reg)}
	if reg.Address != "" {
		c.Addresses = []models.Address{{
			Label:     "Home",
			Line:      reg.Address,
			City:      reg.City,
			Latitude:  reg.Latitude,
			Longitude: reg.Longitude,
			IsDefault: true,
		}}
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func createDeliveryPerson(tx *gorm.DB, reg PendingRegistration) (*models.DeliveryPerson, error) {
	d := &models.DeliveryPerson{
		Credentials:   credentialsFrom(reg),
		VehicleType:   reg.VehicleType,
		VehicleNumber: reg.VehicleNumber,
		IsAvailable:   true,
		CommissionPct: 10,
	}
	if err := tx.Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// createVendor persists the vendor and its restaurant. It runs inside the
// caller's transaction, so a failure at any step leaves neither behind.
func createVendor(tx *gorm.DB, reg PendingRegistration) (*models.Vendor, error) {
	v := &models.Vendor{Credentials: credentialsFrom(reg), PinHash: reg.PinHash, CommissionPct: 15}
	if err := tx.Create(v).Error; err != nil {
		return nil, err
	}

	r := &models.Restaurant{
		VendorID:     v.ID,
		Name:         reg.RestaurantName,
		Description:  reg.Description,
		Cuisine:      reg.Cuisine,
		Address:      reg.Address,
		Phone:        reg.Phone,
		Email:        v.Email,
		MinimumOrder: reg.MinimumOrder,
		DeliveryFee:  reg.DeliveryFee,
		IsOpen:       true,
		IsActive:     true,
		Latitude:     reg.Latitude,
		Longitude:    reg.Longitude,
	}
	if err := tx.Create(r).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(v).Update("restaurant_id", r.ID).Error; err != nil {
		return nil, err
	}
	v.RestaurantID = &r.ID
	return v, nil
}

// isNotFound reports gorm's record-not-found
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
