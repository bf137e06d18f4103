package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"food-marketplace-api/config"
	"food-marketplace-api/events"
	"food-marketplace-api/models"
	"food-marketplace-api/notify"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

type sentCode struct {
	To      string
	Purpose notify.Purpose
	Code    string
}

// recordingNotifier keeps every code it is asked to send
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (n *recordingNotifier) SendOTP(_ context.Context, to string, purpose notify.Purpose, code string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentCode{To: to, Purpose: purpose, Code: code})
	return n.err
}

func (n *recordingNotifier) last(t *testing.T) sentCode {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no code was sent")
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// recordingPublisher keeps published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type stubTokens struct{}

func (stubTokens) GenerateToken(id uint, role models.Role) (string, time.Time, error) {
	return fmt.Sprintf("token-%s-%d", role, id), time.Now().Add(7 * 24 * time.Hour), nil
}

func floatPtr(v float64) *float64 { return &v }

func uintPtr(v uint) *uint { return &v }

type restaurantOpts struct {
	minOrder    float64
	deliveryFee float64
	closed      bool
	lat, lng    *float64
}

// seedVendorRestaurant creates a vendor owning one restaurant
func seedVendorRestaurant(t *testing.T, db *gorm.DB, o restaurantOpts) (*models.Vendor, *models.Restaurant) {
	t.Helper()
	tag := uuid.NewString()[:8]
	v := &models.Vendor{Credentials: models.Credentials{
		Name:         "Vendor " + tag,
		Email:        "vendor-" + tag + "@food.local",
		Phone:        "v-" + tag,
		PasswordHash: "x",
		IsActive:     true,
	}}
	require.NoError(t, db.Create(v).Error)
	r := &models.Restaurant{
		VendorID:     v.ID,
		Name:         "Kitchen " + tag,
		Cuisine:      "Indian",
		MinimumOrder: o.minOrder,
		DeliveryFee:  o.deliveryFee,
		IsOpen:       !o.closed,
		IsActive:     true,
		Latitude:     o.lat,
		Longitude:    o.lng,
	}
	require.NoError(t, db.Create(r).Error)
	require.NoError(t, db.Model(v).Update("restaurant_id", r.ID).Error)
	v.RestaurantID = &r.ID
	return v, r
}

func seedCustomer(t *testing.T, db *gorm.DB) *models.Customer {
	t.Helper()
	tag := uuid.NewString()[:8]
	c := &models.Customer{Credentials: models.Credentials{
		Name:         "Customer " + tag,
		Email:        "customer-" + tag + "@food.local",
		Phone:        "c-" + tag,
		PasswordHash: "x",
		IsActive:     true,
	}}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedDeliveryPerson(t *testing.T, db *gorm.DB, lat, lng float64, available bool) *models.DeliveryPerson {
	t.Helper()
	tag := uuid.NewString()[:8]
	d := &models.DeliveryPerson{
		Credentials: models.Credentials{
			Name:         "Rider " + tag,
			Email:        "rider-" + tag + "@food.local",
			Phone:        "d-" + tag,
			PasswordHash: "x",
			IsActive:     true,
		},
		VehicleType:   "bike",
		IsAvailable:   available,
		Latitude:      floatPtr(lat),
		Longitude:     floatPtr(lng),
		CommissionPct: 10,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

type orderFixture struct {
	db         *gorm.DB
	notifier   *recordingNotifier
	publisher  *recordingPublisher
	dispatcher *Dispatcher
	orders     *OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()
	n := &recordingNotifier{}
	p := &recordingPublisher{}
	d := NewDispatcher(db, DBLocator{DB: db}, p, log, 10)
	return &orderFixture{
		db:         db,
		notifier:   n,
		publisher:  p,
		dispatcher: d,
		orders:     NewOrderService(db, d, n, p, log),
	}
}

func customerActor(c *models.Customer) Actor { return Actor{Role: models.RoleCustomer, ID: c.ID} }

func vendorActor(v *models.Vendor) Actor { return Actor{Role: models.RoleVendor, ID: v.ID} }

var adminActor = Actor{Role: models.RoleAdmin, ID: 1}

// placeOrder places a simple order worth subtotal for the customer
func (f *orderFixture) placeOrder(t *testing.T, c *models.Customer, r *models.Restaurant, subtotal float64) *PlacedOrder {
	t.Helper()
	placed, err := f.orders.PlaceOrder(context.Background(), customerActor(c), PlaceOrderInput{
		RestaurantID:    r.ID,
		CustomerName:    c.Name,
		CustomerPhone:   c.Phone,
		CustomerAddress: "12 MG Road",
		CustomerEmail:   c.Email,
		Items:           []OrderItemInput{{Name: "Thali", Price: subtotal, Quantity: 1}},
	})
	require.NoError(t, err)
	return placed
}

// advance walks an order to the given status as the vendor
func (f *orderFixture) advance(t *testing.T, v *models.Vendor, orderID uint, to ...models.OrderStatus) *Assignment {
	t.Helper()
	var last *Assignment
	for _, st := range to {
		_, a, err := f.orders.UpdateStatus(context.Background(), vendorActor(v), orderID, st, "")
		require.NoError(t, err)
		last = a
	}
	return last
}
