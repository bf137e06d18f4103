package routes

import (
	"food-marketplace-api/handlers"
	"food-marketplace-api/middleware"
	"food-marketplace-api/models"

	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandler
	Orders   *handlers.OrderHandler
	Public   *handlers.PublicHandler
	Vendor   *handlers.VendorHandler
	Delivery *handlers.DeliveryHandler
	Admin    *handlers.AdminHandler
}

// SetupRoutes mounts the API; otpLimit guards every endpoint that sends or checks a code
func SetupRoutes(r *gin.Engine, h Handlers, tokens *middleware.Tokens, otpLimit gin.HandlerFunc) {
	r.GET("/health", h.Public.Health)

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.GET("/restaurants", h.Public.ListRestaurants)
		public.GET("/restaurants/search/:query", h.Public.SearchRestaurants)
		public.GET("/restaurants/:id", h.Public.GetRestaurant)
		public.GET("/restaurants/:id/menu", h.Public.GetMenu)

		public.GET("/state-machine", h.Public.GetStateMachineInfo)
	}

	// ── Auth ───────────────────────────────────────────────────────
	auth := r.Group("/api/auth")
	{
		auth.POST("/send-registration-otp", otpLimit, h.Auth.SendRegistrationOTP)
		auth.POST("/verify-registration-otp", otpLimit, h.Auth.VerifyRegistrationOTP)
		auth.POST("/forgot-password", otpLimit, h.Auth.ForgotPassword)
		auth.POST("/reset-password", otpLimit, h.Auth.ResetPassword)
		auth.POST("/send-verification-otp", otpLimit, h.Auth.SendVerificationOTP)
		auth.POST("/verify-email-otp", otpLimit, h.Auth.VerifyEmailOTP)

		auth.POST("/login-customer", h.Auth.Login(models.RoleCustomer))
		auth.POST("/login-vendor", h.Auth.Login(models.RoleVendor))
		auth.POST("/login-delivery", h.Auth.Login(models.RoleDelivery))
		auth.POST("/login-admin", h.Auth.Login(models.RoleAdmin))
		auth.POST("/login-pin", otpLimit, h.Auth.LoginWithPIN)

		auth.GET("/profile", tokens.AuthRequired(), h.Auth.GetProfile)
	}

	// ── Orders (party checks happen per order) ─────────────────────
	orders := r.Group("/api/orders")
	orders.Use(tokens.AuthRequired())
	{
		orders.POST("", middleware.RoleRequired(models.RoleCustomer, models.RoleAdmin), h.Orders.PlaceOrder)
		orders.GET("", h.Orders.ListOrders)
		orders.GET("/:id", h.Orders.GetOrder)
		orders.PATCH("/:id/status", h.Orders.UpdateStatus)
		orders.POST("/:id/verify-otp", otpLimit,
			middleware.RoleRequired(models.RoleDelivery, models.RoleVendor, models.RoleAdmin), h.Orders.VerifyOTP)
		orders.PATCH("/:id/cancel", h.Orders.CancelOrder)
		orders.POST("/:id/rate", middleware.RoleRequired(models.RoleCustomer, models.RoleAdmin), h.Orders.RateOrder)
	}

	// ── Vendor routes ──────────────────────────────────────────────
	vendor := r.Group("/api/vendor/:vendorId")
	vendor.Use(tokens.AuthRequired(), middleware.RoleRequired(models.RoleVendor, models.RoleAdmin), middleware.SelfOnly("vendorId"))
	{
		vendor.GET("/restaurant", h.Vendor.GetRestaurant)
		vendor.PATCH("/restaurant", h.Vendor.UpdateRestaurant)

		vendor.POST("/menu", h.Vendor.AddMenuItem)
		vendor.PUT("/menu/:menuItemId", h.Vendor.UpdateMenuItem)
		vendor.DELETE("/menu/:menuItemId", h.Vendor.DeleteMenuItem)
	}

	// ── Delivery routes ────────────────────────────────────────────
	delivery := r.Group("/api/delivery/:id")
	delivery.Use(tokens.AuthRequired(), middleware.RoleRequired(models.RoleDelivery, models.RoleAdmin))
	{
		delivery.PATCH("/location", middleware.SelfOnly("id"), h.Delivery.UpdateLocation)
		delivery.PATCH("/availability", middleware.SelfOnly("id"), h.Delivery.UpdateAvailability)
		delivery.GET("/orders", middleware.SelfOnly("id"), h.Delivery.GetOrders)
		// :id is the order here
		delivery.POST("/verify-otp", otpLimit, h.Delivery.VerifyOTP)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(tokens.AuthRequired(), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/dashboard", h.Admin.Dashboard)
		admin.GET("/orders", h.Orders.ListOrders)
		admin.GET("/users", h.Admin.GetUsers)
		admin.PATCH("/users/:role/:id/status", h.Admin.SetUserStatus)
		admin.GET("/restaurants", h.Admin.GetRestaurants)
		admin.PATCH("/restaurants/:id/status", h.Admin.SetRestaurantStatus)
		admin.POST("/dispatch/sweep", h.Admin.Sweep)
	}
}
