package handlers

import (
	"net/http"

	"food-marketplace-api/models"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	UserType string `json:"userType" binding:"required,oneof=customer vendor delivery"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`

	Address string `json:"address"`
	City    string `json:"city"`

	Pin            string  `json:"pin" binding:"omitempty,numeric,min=4,max=6"`
	RestaurantName string  `json:"restaurantName"`
	Description    string  `json:"description"`
	Cuisine        string  `json:"cuisine"`
	MinimumOrder   float64 `json:"minimumOrder" binding:"gte=0"`
	DeliveryFee    float64 `json:"deliveryFee" binding:"gte=0"`

	VehicleType   string `json:"vehicleType"`
	VehicleNumber string `json:"vehicleNumber"`

	Latitude  *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
}

type VerifyRegistrationRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type PinLoginRequest struct {
	Email string `json:"email" binding:"required,email"`
	Pin   string `json:"pin" binding:"required,numeric,min=4,max=6"`
}

// AccountRequest names an account of some role by email
type AccountRequest struct {
	Email    string `json:"email" binding:"required,email"`
	UserType string `json:"userType" binding:"required,oneof=customer vendor delivery admin"`
}

type AccountOTPRequest struct {
	AccountRequest
	OTP string `json:"otp" binding:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	AccountOTPRequest
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

type AuthHandler struct {
	Responder
	Auth *services.AuthService
}

// SendRegistrationOTP parks a registration and emails its code
func (h *AuthHandler) SendRegistrationOTP(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	expiresAt, err := h.Auth.SendRegistrationOTP(c.Request.Context(), services.RegistrationInput{
		Role:           roleParam(req.UserType),
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Password:       req.Password,
		Address:        req.Address,
		City:           req.City,
		Pin:            req.Pin,
		RestaurantName: req.RestaurantName,
		Description:    req.Description,
		Cuisine:        req.Cuisine,
		MinimumOrder:   req.MinimumOrder,
		DeliveryFee:    req.DeliveryFee,
		VehicleType:    req.VehicleType,
		VehicleNumber:  req.VehicleNumber,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "OTP sent to your email", gin.H{"email": req.Email, "expiresAt": expiresAt})
}

// VerifyRegistrationOTP creates the account and returns a session
func (h *AuthHandler) VerifyRegistrationOTP(c *gin.Context) {
	var req VerifyRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	session, err := h.Auth.VerifyRegistrationOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusCreated, "Registration successful", session)
}

// Login returns a handler for one role's email/password login
func (h *AuthHandler) Login(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Error(c, err)
			return
		}
		session, err := h.Auth.Login(c.Request.Context(), role, req.Email, req.Password)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, http.StatusOK, "Login successful", session)
	}
}

// LoginWithPIN signs a vendor in with their PIN
func (h *AuthHandler) LoginWithPIN(c *gin.Context) {
	var req PinLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	session, err := h.Auth.LoginWithPIN(c.Request.Context(), req.Email, req.Pin)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Login successful", session)
}

// ForgotPassword answers the same way whether or not the account exists
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.Auth.ForgotPassword(c.Request.Context(), roleParam(req.UserType), req.Email); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "If an account exists for this email, a reset code has been sent", nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.Auth.ResetPassword(c.Request.Context(), roleParam(req.UserType), req.Email, req.OTP, req.NewPassword); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Password reset successful", nil)
}

// SendVerificationOTP answers the same way whether or not the account exists
func (h *AuthHandler) SendVerificationOTP(c *gin.Context) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.Auth.SendVerificationOTP(c.Request.Context(), roleParam(req.UserType), req.Email); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "If an account exists for this email, a verification code has been sent", nil)
}

func (h *AuthHandler) VerifyEmailOTP(c *gin.Context) {
	var req AccountOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.Auth.VerifyEmailOTP(c.Request.Context(), roleParam(req.UserType), req.Email, req.OTP); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Email verified", nil)
}

// GetProfile returns the logged-in account
func (h *AuthHandler) GetProfile(c *gin.Context) {
	actor := actorOf(c)
	account, err := h.Auth.Profile(c.Request.Context(), actor)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Profile fetched", gin.H{"role": actor.Role, "user": account})
}
