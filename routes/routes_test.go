package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"food-marketplace-api/config"
	"food-marketplace-api/events"
	"food-marketplace-api/handlers"
	"food-marketplace-api/middleware"
	"food-marketplace-api/models"
	"food-marketplace-api/notify"
	"food-marketplace-api/otp"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	handlers.RegisterValidation()
}

// mailbox keeps the latest code sent to each address
type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) SendOTP(_ context.Context, to string, _ notify.Purpose, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *mailbox) code(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[to]
	require.True(t, ok, "no code sent to %s", to)
	return code
}

type api struct {
	db     *gorm.DB
	engine *gin.Engine
	tokens *middleware.Tokens
	mail   *mailbox
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db, err := config.OpenDB(config.DBConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	log, _ := test.NewNullLogger()
	mail := &mailbox{codes: map[string]string{}}
	publisher := events.LogPublisher{Log: log}
	tokens := middleware.NewTokens("test-secret", time.Hour)
	locator := services.DBLocator{DB: db}
	dispatcher := services.NewDispatcher(db, locator, publisher, log, 10)
	orders := services.NewOrderService(db, dispatcher, mail, publisher, log)
	restaurants := services.NewRestaurantService(db, log)
	auth := services.NewAuthService(db, otp.NewMemoryStore[services.PendingRegistration](), mail, tokens, log)
	responder := handlers.Responder{Log: log}

	r := gin.New()
	r.Use(middleware.RequestID())
	SetupRoutes(r, Handlers{
		Auth:     &handlers.AuthHandler{Responder: responder, Auth: auth},
		Orders:   &handlers.OrderHandler{Responder: responder, Orders: orders, DebugOTP: true},
		Public:   &handlers.PublicHandler{Responder: responder, Restaurants: restaurants},
		Vendor:   &handlers.VendorHandler{Responder: responder, Restaurants: restaurants},
		Delivery: &handlers.DeliveryHandler{Responder: responder, Delivery: services.NewDeliveryService(db, locator, orders, log), Orders: orders},
		Admin:    &handlers.AdminHandler{Responder: responder, Admin: services.NewAdminService(db, log), Dispatcher: dispatcher},
	}, tokens, middleware.NewRateLimiter(1000).Middleware())

	return &api{db: db, engine: r, tokens: tokens, mail: mail}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

func (a *api) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (a *api) token(t *testing.T, id uint, role models.Role) string {
	t.Helper()
	tok, _, err := a.tokens.GenerateToken(id, role)
	require.NoError(t, err)
	return tok
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func (a *api) seedVendor(t *testing.T, lat, lng float64) (*models.Vendor, *models.Restaurant) {
	t.Helper()
	tag := uuid.NewString()[:8]
	v := &models.Vendor{Credentials: models.Credentials{
		Name: "Vendor " + tag, Email: "vendor-" + tag + "@food.local", Phone: "v-" + tag,
		PasswordHash: "x", IsActive: true,
	}}
	require.NoError(t, a.db.Create(v).Error)
	r := &models.Restaurant{
		VendorID: v.ID, Name: "Kitchen " + tag, Cuisine: "Indian",
		MinimumOrder: 100, DeliveryFee: 20, IsOpen: true, IsActive: true,
		Latitude: &lat, Longitude: &lng,
	}
	require.NoError(t, a.db.Create(r).Error)
	require.NoError(t, a.db.Model(v).Update("restaurant_id", r.ID).Error)
	return v, r
}

func (a *api) seedCustomer(t *testing.T) *models.Customer {
	t.Helper()
	tag := uuid.NewString()[:8]
	c := &models.Customer{Credentials: models.Credentials{
		Name: "Customer " + tag, Email: "customer-" + tag + "@food.local", Phone: "c-" + tag,
		PasswordHash: "x", IsActive: true,
	}}
	require.NoError(t, a.db.Create(c).Error)
	return c
}

func (a *api) seedRider(t *testing.T, lat, lng float64) *models.DeliveryPerson {
	t.Helper()
	tag := uuid.NewString()[:8]
	d := &models.DeliveryPerson{
		Credentials: models.Credentials{
			Name: "Rider " + tag, Email: "rider-" + tag + "@food.local", Phone: "d-" + tag,
			PasswordHash: "x", IsActive: true,
		},
		VehicleType: "bike", IsAvailable: true, Latitude: &lat, Longitude: &lng, CommissionPct: 10,
	}
	require.NoError(t, a.db.Create(d).Error)
	return d
}

func TestHealthAndStateMachine(t *testing.T) {
	a := newAPI(t)

	code, env := a.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, env = a.call(t, http.MethodGet, "/api/state-machine", "", nil)
	require.Equal(t, http.StatusOK, code)
	var info struct {
		Statuses       []models.OrderStatus `json:"statuses"`
		TerminalStates []models.OrderStatus `json:"terminalStates"`
	}
	decode(t, env.Data, &info)
	assert.Contains(t, info.Statuses, models.StatusOutForDelivery)
	assert.ElementsMatch(t, []models.OrderStatus{models.StatusDelivered, models.StatusCancelled}, info.TerminalStates)
}

func TestRegistrationOverHTTP(t *testing.T) {
	a := newAPI(t)
	email := "asha@food.local"

	code, env := a.call(t, http.MethodPost, "/api/auth/send-registration-otp", "", gin.H{
		"userType": "customer", "name": "Asha", "email": email, "phone": "9000000001",
		"password": "secret1", "address": "12 MG Road",
	})
	require.Equal(t, http.StatusOK, code, env.Message)

	sent := a.mail.code(t, email)
	wrong := "000000"
	if sent == wrong {
		wrong = "111111"
	}
	code, env = a.call(t, http.MethodPost, "/api/auth/verify-registration-otp", "", gin.H{"email": email, "otp": wrong})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, env = a.call(t, http.MethodPost, "/api/auth/verify-registration-otp", "", gin.H{"email": email, "otp": sent})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var session struct {
		Token string      `json:"token"`
		Role  models.Role `json:"role"`
	}
	decode(t, env.Data, &session)
	assert.Equal(t, models.RoleCustomer, session.Role)

	code, env = a.call(t, http.MethodGet, "/api/auth/profile", session.Token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.call(t, http.MethodPost, "/api/auth/login-customer", "", gin.H{"email": email, "password": "secret1"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.call(t, http.MethodPost, "/api/auth/login-vendor", "", gin.H{"email": email, "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = a.call(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "nobody@food.local", "userType": "customer"})
	assert.Equal(t, http.StatusOK, code)
	_, known := a.call(t, http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": email, "userType": "customer"})
	assert.Equal(t, env.Message, known.Message, "unknown and known emails answer alike")
}

func TestRequestValidationEnvelope(t *testing.T) {
	a := newAPI(t)

	code, env := a.call(t, http.MethodPost, "/api/auth/send-registration-otp", "", gin.H{
		"userType": "customer", "name": "X", "email": "not-an-email", "phone": "1", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", env.Message)
	assert.Contains(t, env.Errors, "email must be a valid email")

	code, env = a.call(t, http.MethodPost, "/api/auth/login-customer", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request body", env.Message)

	code, _ = a.call(t, http.MethodGet, "/api/restaurants/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)
	v, r := a.seedVendor(t, 12.9716, 77.5946)
	c := a.seedCustomer(t)
	rider := a.seedRider(t, 12.9800, 77.6000)
	customerTok := a.token(t, c.ID, models.RoleCustomer)
	vendorTok := a.token(t, v.ID, models.RoleVendor)
	riderTok := a.token(t, rider.ID, models.RoleDelivery)
	adminTok := a.token(t, 1, models.RoleAdmin)

	order := gin.H{
		"restaurantId": r.ID,
		"customerInfo": gin.H{"name": c.Name, "phone": c.Phone, "address": "12 MG Road"},
		"items":        []gin.H{{"name": "Thali", "price": 90, "quantity": 1}},
		"totalAmount":  110,
	}
	code, env := a.call(t, http.MethodPost, "/api/orders", customerTok, order)
	assert.Equal(t, http.StatusBadRequest, code, "below the restaurant minimum")

	order["items"] = []gin.H{{"name": "Thali", "price": 90, "quantity": 2}}
	order["totalAmount"] = 200
	code, env = a.call(t, http.MethodPost, "/api/orders", customerTok, order)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var placed struct {
		OrderID     uint    `json:"orderId"`
		TotalAmount float64 `json:"totalAmount"`
		OTP         string  `json:"otp"`
	}
	decode(t, env.Data, &placed)
	assert.Equal(t, 200.0, placed.TotalAmount)
	require.Len(t, placed.OTP, 4)

	statusPath := fmt.Sprintf("/api/orders/%d/status", placed.OrderID)
	code, _ = a.call(t, http.MethodPatch, statusPath, vendorTok, gin.H{"status": models.StatusPreparing})
	assert.Equal(t, http.StatusBadRequest, code, "statuses cannot be skipped")
	code, _ = a.call(t, http.MethodPatch, statusPath, customerTok, gin.H{"status": models.StatusAccepted})
	assert.Equal(t, http.StatusForbidden, code)

	for _, s := range []models.OrderStatus{models.StatusAccepted, models.StatusPreparing} {
		code, env = a.call(t, http.MethodPatch, statusPath, vendorTok, gin.H{"status": s})
		require.Equal(t, http.StatusOK, code, env.Message)
	}
	code, env = a.call(t, http.MethodPatch, statusPath, vendorTok, gin.H{"status": models.StatusOutForDelivery})
	require.Equal(t, http.StatusOK, code, env.Message)
	var moved struct {
		Assignment services.Assignment `json:"assignment"`
	}
	decode(t, env.Data, &moved)
	assert.Equal(t, services.OutcomeAssigned, moved.Assignment.Outcome)
	require.NotNil(t, moved.Assignment.DeliveryPersonID)
	assert.Equal(t, rider.ID, *moved.Assignment.DeliveryPersonID)

	verifyPath := fmt.Sprintf("/api/delivery/%d/verify-otp", placed.OrderID)
	code, _ = a.call(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/verify-otp", placed.OrderID), customerTok, gin.H{"otp": placed.OTP})
	assert.Equal(t, http.StatusForbidden, code)
	code, env = a.call(t, http.MethodPost, verifyPath, riderTok, gin.H{"otp": "12"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", env.Message)

	code, env = a.call(t, http.MethodPost, verifyPath, riderTok, gin.H{"otp": placed.OTP})
	require.Equal(t, http.StatusOK, code, env.Message)
	var delivered models.Order
	decode(t, env.Data, &delivered)
	assert.Equal(t, models.StatusDelivered, delivered.Status)

	ratePath := fmt.Sprintf("/api/orders/%d/rate", placed.OrderID)
	code, _ = a.call(t, http.MethodPost, ratePath, customerTok, gin.H{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env = a.call(t, http.MethodPost, ratePath, customerTok, gin.H{"rating": 4, "review": "hot and fast"})
	require.Equal(t, http.StatusOK, code, env.Message)
	code, _ = a.call(t, http.MethodPost, ratePath, customerTok, gin.H{"rating": 5})
	assert.Equal(t, http.StatusBadRequest, code, "an order is rated once")

	code, env = a.call(t, http.MethodGet, fmt.Sprintf("/api/delivery/%d/orders", rider.ID), riderTok, nil)
	require.Equal(t, http.StatusOK, code)
	var listed struct {
		Orders     []models.Order       `json:"orders"`
		Pagination handlers.Pagination `json:"pagination"`
	}
	decode(t, env.Data, &listed)
	assert.EqualValues(t, 1, listed.Pagination.Total)

	code, env = a.call(t, http.MethodGet, "/api/admin/dashboard", adminTok, nil)
	require.Equal(t, http.StatusOK, code)
	var dash services.Dashboard
	decode(t, env.Data, &dash)
	assert.Equal(t, 200.0, dash.Revenue)
}

func TestAccessControlOverHTTP(t *testing.T) {
	a := newAPI(t)
	v, _ := a.seedVendor(t, 12.97, 77.59)
	other, _ := a.seedVendor(t, 12.97, 77.59)
	c := a.seedCustomer(t)
	rider := a.seedRider(t, 12.97, 77.59)
	customerTok := a.token(t, c.ID, models.RoleCustomer)
	vendorTok := a.token(t, v.ID, models.RoleVendor)

	code, _ := a.call(t, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = a.call(t, http.MethodGet, "/api/admin/dashboard", customerTok, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.call(t, http.MethodGet, fmt.Sprintf("/api/vendor/%d/restaurant", other.ID), vendorTok, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.call(t, http.MethodPatch, fmt.Sprintf("/api/delivery/%d/availability", rider.ID), customerTok, gin.H{"isAvailable": false})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.call(t, http.MethodPost, "/api/orders", vendorTok, gin.H{})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestVendorMenuOverHTTP(t *testing.T) {
	a := newAPI(t)
	v, r := a.seedVendor(t, 12.97, 77.59)
	vendorTok := a.token(t, v.ID, models.RoleVendor)
	menuPath := fmt.Sprintf("/api/vendor/%d/menu", v.ID)

	code, env := a.call(t, http.MethodPost, menuPath, vendorTok, gin.H{
		"name": "Masala Dosa", "price": 80, "category": models.CategoryMain, "isVeg": true,
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var item models.MenuItem
	decode(t, env.Data, &item)
	assert.Equal(t, r.ID, item.RestaurantID)
	assert.True(t, item.IsAvailable)

	code, _ = a.call(t, http.MethodPost, menuPath, vendorTok, gin.H{"name": "Mystery", "price": 10, "category": "Brunch"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.call(t, http.MethodGet, fmt.Sprintf("/api/restaurants/%d/menu?isVeg=true", r.ID), "", nil)
	require.Equal(t, http.StatusOK, code)
	var menu struct {
		Count int `json:"count"`
	}
	decode(t, env.Data, &menu)
	assert.Equal(t, 1, menu.Count)

	code, _ = a.call(t, http.MethodPatch, fmt.Sprintf("/api/vendor/%d/restaurant", v.ID), vendorTok, gin.H{"isOpen": false})
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.call(t, http.MethodDelete, fmt.Sprintf("%s/%d", menuPath, item.ID), vendorTok, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.call(t, http.MethodDelete, fmt.Sprintf("%s/%d", menuPath, item.ID), vendorTok, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminSweepOverHTTP(t *testing.T) {
	a := newAPI(t)
	adminTok := a.token(t, 1, models.RoleAdmin)

	code, env := a.call(t, http.MethodPost, "/api/admin/dispatch/sweep", adminTok, nil)
	require.Equal(t, http.StatusOK, code)
	var report services.SweepReport
	decode(t, env.Data, &report)
	assert.Zero(t, report.Scanned)

	c := a.seedCustomer(t)
	code, _ = a.call(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/customer/%d/status", c.ID), adminTok, gin.H{"isActive": false})
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.call(t, http.MethodGet, "/api/admin/users?role=customer", adminTok, nil)
	assert.Equal(t, http.StatusOK, code)
}
