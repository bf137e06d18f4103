package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
	"food-marketplace-api/notify"
	"food-marketplace-api/otp"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenIssuer signs session tokens
type TokenIssuer interface {
	GenerateToken(id uint, role models.Role) (string, time.Time, error)
}

// RegistrationInput is what a prospective account submits
type RegistrationInput struct {
	Role     models.Role
	Name     string
	Email    string
	Phone    string
	Password string

	// customer
	Address string
	City    string

	// vendor
	Pin            string
	RestaurantName string
	Description    string
	Cuisine        string
	MinimumOrder   float64
	DeliveryFee    float64

	// delivery
	VehicleType   string
	VehicleNumber string

	// customer default address or restaurant position
	Latitude  *float64
	Longitude *float64
}

// PendingRegistration is the record held until the registration code is confirmed.
// Secrets are hashed before it is stored.
type PendingRegistration struct {
	Role           models.Role `json:"role"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	PasswordHash   string      `json:"passwordHash"`
	PinHash        string      `json:"pinHash,omitempty"`
	Address        string      `json:"address,omitempty"`
	City           string      `json:"city,omitempty"`
	RestaurantName string      `json:"restaurantName,omitempty"`
	Description    string      `json:"description,omitempty"`
	Cuisine        string      `json:"cuisine,omitempty"`
	MinimumOrder   float64     `json:"minimumOrder,omitempty"`
	DeliveryFee    float64     `json:"deliveryFee,omitempty"`
	VehicleType    string      `json:"vehicleType,omitempty"`
	VehicleNumber  string      `json:"vehicleNumber,omitempty"`
	Latitude       *float64    `json:"latitude,omitempty"`
	Longitude      *float64    `json:"longitude,omitempty"`
}

// Session is the result of a successful login or registration
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Role      models.Role    `json:"role"`
	Account   models.Account `json:"user"`
}

// AdminSeed describes the well-known admin account
type AdminSeed struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

const minPasswordLen = 6

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

type AuthService struct {
	db       *gorm.DB
	stores   AccountStores
	pending  otp.PendingStore[PendingRegistration]
	notifier notify.Notifier
	tokens   TokenIssuer
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewAuthService(db *gorm.DB, pending otp.PendingStore[PendingRegistration], notifier notify.Notifier, tokens TokenIssuer, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		db:       db,
		stores:   NewAccountStores(db),
		pending:  pending,
		notifier: notifier,
		tokens:   tokens,
		log:      log,
		now:      time.Now,
	}
}

// SendRegistrationOTP validates a registration, parks it in the pending store and sends the code.
// A later call for the same email replaces the earlier one.
func (s *AuthService) SendRegistrationOTP(ctx context.Context, in RegistrationInput) (time.Time, error) {
	s.sweepPending(ctx)

	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateRegistration(in); err != nil {
		return time.Time{}, err
	}

	store, err := s.stores.For(in.Role)
	if err != nil {
		return time.Time{}, err
	}
	exists, err := store.Exists(ctx, in.Email, in.Phone)
	if err != nil {
		return time.Time{}, apperr.Internal("failed to check existing accounts", err)
	}
	if exists {
		return time.Time{}, apperr.Conflict("An account with this email or phone already exists")
	}

	reg, err := hashRegistration(in)
	if err != nil {
		return time.Time{}, err
	}

	code, err := otp.Generate(otp.RegistrationDigits)
	if err != nil {
		return time.Time{}, apperr.Internal("failed to generate code", err)
	}
	expiresAt := s.now().Add(otp.TTL)
	if err := s.pending.Put(ctx, in.Email, otp.Entry[PendingRegistration]{Value: reg, Code: code, ExpiresAt: expiresAt}); err != nil {
		return time.Time{}, apperr.Internal("failed to store registration", err)
	}

	if err := s.notifier.SendOTP(ctx, in.Email, notify.PurposeRegistration, code, expiresAt); err != nil {
		_ = s.pending.Delete(ctx, in.Email)
		s.log.WithError(err).WithField("role", in.Role).Warn("registration code could not be sent")
		return time.Time{}, apperr.Internal("Failed to send verification code", err)
	}

	s.log.WithFields(logrus.Fields{"role": in.Role}).Info("registration code sent")
	return expiresAt, nil
}

// VerifyRegistrationOTP turns a pending registration into a real account and signs the caller in
func (s *AuthService) VerifyRegistrationOTP(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)
	entry, ok, err := s.pending.Get(ctx, email)
	if err != nil {
		return nil, apperr.Internal("failed to load registration", err)
	}
	// sweep after the lookup so an expired entry is still reported as expired
	s.sweepPending(ctx)
	if !ok {
		return nil, apperr.NotFound("No pending registration found for this email")
	}
	if entry.Expired(s.now()) {
		_ = s.pending.Delete(ctx, email)
		return nil, apperr.Validation("Verification code has expired, please request a new one")
	}
	if !otp.Match(entry.Code, code) {
		return nil, apperr.Validation("Invalid verification code")
	}

	reg := entry.Value
	store, err := s.stores.For(reg.Role)
	if err != nil {
		return nil, err
	}
	// the address may have been taken while the code was outstanding
	exists, err := store.Exists(ctx, reg.Email, reg.Phone)
	if err != nil {
		return nil, apperr.Internal("failed to check existing accounts", err)
	}
	if exists {
		_ = s.pending.Delete(ctx, email)
		return nil, apperr.Conflict("An account with this email or phone already exists")
	}

	account, err := store.Create(ctx, reg)
	if err != nil {
		return nil, apperr.Internal("Failed to create account", err)
	}
	if err := s.pending.Delete(ctx, email); err != nil {
		s.log.WithError(err).Warn("failed to evict pending registration")
	}

	s.log.WithFields(logrus.Fields{"role": reg.Role, "account_id": account.AccountID()}).Info("account registered")
	return s.session(account)
}

// Login checks an email and password against the role's store
func (s *AuthService) Login(ctx context.Context, role models.Role, email, password string) (*Session, error) {
	store, err := s.stores.For(role)
	if err != nil {
		return nil, err
	}
	account, err := store.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Unauthorized("Invalid email or password")
		}
		return nil, apperr.Internal("failed to load account", err)
	}
	creds := account.Creds()
	if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized("Invalid email or password")
	}
	return s.completeLogin(ctx, store, account)
}

// LoginWithPIN signs a vendor in with their short PIN
func (s *AuthService) LoginWithPIN(ctx context.Context, email, pin string) (*Session, error) {
	store, _ := s.stores.For(models.RoleVendor)
	account, err := store.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Unauthorized("Invalid email or PIN")
		}
		return nil, apperr.Internal("failed to load account", err)
	}
	vendor := account.(*models.Vendor)
	if vendor.PinHash == "" || bcrypt.CompareHashAndPassword([]byte(vendor.PinHash), []byte(pin)) != nil {
		return nil, apperr.Unauthorized("Invalid email or PIN")
	}
	return s.completeLogin(ctx, store, account)
}

func (s *AuthService) completeLogin(ctx context.Context, store AccountStore, account models.Account) (*Session, error) {
	if !account.Creds().IsActive {
		return nil, apperr.Forbidden("Account is deactivated")
	}
	now := s.now()
	if err := store.TouchLogin(ctx, account.AccountID(), now); err != nil {
		return nil, apperr.Internal("failed to record login", err)
	}
	account.Creds().LastLogin = &now
	return s.session(account)
}

func (s *AuthService) session(account models.Account) (*Session, error) {
	token, expiresAt, err := s.tokens.GenerateToken(account.AccountID(), account.AccountRole())
	if err != nil {
		return nil, apperr.Internal("Failed to generate token", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Role: account.AccountRole(), Account: account}, nil
}

// Profile loads the caller's own account
func (s *AuthService) Profile(ctx context.Context, actor Actor) (models.Account, error) {
	store, err := s.stores.For(actor.Role)
	if err != nil {
		return nil, err
	}
	account, err := store.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, notFoundOr(err, "Account")
	}
	return account, nil
}

// ForgotPassword issues a reset code. It reports success whether or not the account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, role models.Role, email string) error {
	return s.issueAccountOTP(ctx, role, email, SlotReset, notify.PurposePasswordReset)
}

// SendVerificationOTP issues an email verification code, with the same uniform response as ForgotPassword
func (s *AuthService) SendVerificationOTP(ctx context.Context, role models.Role, email string) error {
	return s.issueAccountOTP(ctx, role, email, SlotVerify, notify.PurposeEmailVerify)
}

func (s *AuthService) issueAccountOTP(ctx context.Context, role models.Role, email string, slot OTPSlot, purpose notify.Purpose) error {
	store, err := s.stores.For(role)
	if err != nil {
		return err
	}
	entry := s.log.WithFields(logrus.Fields{"role": role, "purpose": purpose})

	account, err := store.FindByEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			entry.WithError(err).Error("account lookup failed")
		}
		return nil
	}

	code, err := otp.Generate(otp.AccountDigits)
	if err != nil {
		return apperr.Internal("failed to generate code", err)
	}
	expiresAt := s.now().Add(otp.TTL)
	if err := store.SetOTP(ctx, account.AccountID(), slot, models.OTP{Code: code, ExpiresAt: &expiresAt}); err != nil {
		entry.WithError(err).Error("failed to store code")
		return nil
	}
	if err := s.notifier.SendOTP(ctx, account.Creds().Email, purpose, code, expiresAt); err != nil {
		entry.WithError(err).Warn("code could not be sent")
	}
	return nil
}

// ResetPassword sets a new password once the reset code is confirmed
func (s *AuthService) ResetPassword(ctx context.Context, role models.Role, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return apperr.Validation("Password must be at least %d characters", minPasswordLen)
	}
	store, account, err := s.checkAccountOTP(ctx, role, email, code, func(c *models.Credentials) models.OTP { return c.ResetOTP })
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if err := store.SetPassword(ctx, account.AccountID(), string(hash)); err != nil {
		return apperr.Internal("failed to update password", err)
	}
	s.log.WithFields(logrus.Fields{"role": role, "account_id": account.AccountID()}).Info("password reset")
	return nil
}

// VerifyEmailOTP marks the account's email as verified
func (s *AuthService) VerifyEmailOTP(ctx context.Context, role models.Role, email, code string) error {
	store, account, err := s.checkAccountOTP(ctx, role, email, code, func(c *models.Credentials) models.OTP { return c.VerifyOTP })
	if err != nil {
		return err
	}
	if err := store.MarkEmailVerified(ctx, account.AccountID()); err != nil {
		return apperr.Internal("failed to verify email", err)
	}
	return nil
}

func (s *AuthService) checkAccountOTP(ctx context.Context, role models.Role, email, code string, pick func(*models.Credentials) models.OTP) (AccountStore, models.Account, error) {
	store, err := s.stores.For(role)
	if err != nil {
		return nil, nil, err
	}
	account, err := store.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperr.Validation("Invalid or expired code")
		}
		return nil, nil, apperr.Internal("failed to load account", err)
	}
	o := pick(account.Creds())
	if !o.Issued() || o.Verified {
		return nil, nil, apperr.Validation("Invalid or expired code")
	}
	if o.Expired(s.now()) {
		return nil, nil, apperr.Validation("Code has expired, please request a new one")
	}
	if !otp.Match(o.Code, code) {
		return nil, nil, apperr.Validation("Invalid or expired code")
	}
	return store, account, nil
}

// EnsureAdmin creates the well-known admin account when it does not exist yet
func (s *AuthService) EnsureAdmin(ctx context.Context, seed AdminSeed) error {
	email := normalizeEmail(seed.Email)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Admin{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &models.Admin{
		Credentials: models.Credentials{
			Name:            seed.Name,
			Email:           email,
			Phone:           seed.Phone,
			PasswordHash:    string(hash),
			IsActive:        true,
			IsEmailVerified: true,
		},
		Permissions: models.AdminPermissions,
	}
	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		return err
	}
	s.log.WithField("email", email).Info("admin account created")
	return nil
}

// sweepPending evicts expired registrations; failures only cost memory
func (s *AuthService) sweepPending(ctx context.Context) {
	if n, err := s.pending.Sweep(ctx, s.now()); err != nil {
		s.log.WithError(err).Warn("pending registration sweep failed")
	} else if n > 0 {
		s.log.WithField("evicted", n).Debug("expired registrations evicted")
	}
}

func validateRegistration(in RegistrationInput) error {
	if !in.Role.SelfRegistering() {
		return apperr.Validation("Invalid user type. Must be customer, vendor or delivery")
	}
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Phone == "" {
		missing = append(missing, "phone")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	switch in.Role {
	case models.RoleVendor:
		if strings.TrimSpace(in.RestaurantName) == "" {
			missing = append(missing, "restaurantName")
		}
		if strings.TrimSpace(in.Address) == "" {
			missing = append(missing, "address")
		}
	case models.RoleDelivery:
		if strings.TrimSpace(in.VehicleType) == "" {
			missing = append(missing, "vehicleType")
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields: %s", strings.Join(missing, ", "))
	}
	if len(in.Password) < minPasswordLen {
		return apperr.Validation("Password must be at least %d characters", minPasswordLen)
	}
	if in.Pin != "" && !pinPattern.MatchString(in.Pin) {
		return apperr.Validation("PIN must be 4 to 6 digits")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return apperr.Validation("latitude and longitude must be given together")
	}
	if in.MinimumOrder < 0 || in.DeliveryFee < 0 {
		return apperr.Validation("minimumOrder and deliveryFee cannot be negative")
	}
	return nil
}

func hashRegistration(in RegistrationInput) (PendingRegistration, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return PendingRegistration{}, apperr.Internal("failed to hash password", err)
	}
	reg := PendingRegistration{
		Role:           in.Role,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		PasswordHash:   string(hash),
		Address:        strings.TrimSpace(in.Address),
		City:           in.City,
		RestaurantName: strings.TrimSpace(in.RestaurantName),
		Description:    in.Description,
		Cuisine:        in.Cuisine,
		MinimumOrder:   in.MinimumOrder,
		DeliveryFee:    in.DeliveryFee,
		VehicleType:    in.VehicleType,
		VehicleNumber:  in.VehicleNumber,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
	}
	if in.Pin != "" {
		pin, err := bcrypt.GenerateFromPassword([]byte(in.Pin), bcrypt.DefaultCost)
		if err != nil {
			return PendingRegistration{}, apperr.Internal("failed to hash pin", err)
		}
		reg.PinHash = string(pin)
	}
	return reg, nil
}
