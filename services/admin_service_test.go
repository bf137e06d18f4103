package services

import (
	"context"
	"testing"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard(t *testing.T) {
	f := newOrderFixture(t)
	admin := NewAdminService(f.db, newTestLogger())
	v, r := seedVendorRestaurant(t, f.db, restaurantOpts{deliveryFee: 10})
	c := seedCustomer(t, f.db)
	ctx := context.Background()

	delivered := f.placeOrder(t, c, r, 90).Order.ID
	f.advance(t, v, delivered, models.StatusAccepted, models.StatusPreparing, models.StatusOutForDelivery)
	_, _, err := f.orders.UpdateStatus(ctx, adminActor, delivered, models.StatusDelivered, "")
	require.NoError(t, err)
	f.placeOrder(t, c, r, 50)

	d, err := admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.Users[models.RoleCustomer])
	assert.EqualValues(t, 1, d.Users[models.RoleVendor])
	assert.EqualValues(t, 0, d.Users[models.RoleDelivery])
	assert.EqualValues(t, 1, d.Restaurants)
	assert.EqualValues(t, 2, d.Orders)
	assert.EqualValues(t, 1, d.OrdersByStatus[models.StatusDelivered])
	assert.EqualValues(t, 1, d.OrdersByStatus[models.StatusPlaced])
	assert.EqualValues(t, 0, d.OrdersByStatus[models.StatusCancelled])
	assert.Equal(t, 100.0, d.Revenue)
}

func TestAdminUsersAndSuspension(t *testing.T) {
	db := newTestDB(t)
	admin := NewAdminService(db, newTestLogger())
	ctx := context.Background()
	seedCustomer(t, db)
	rider := seedDeliveryPerson(t, db, 12, 77, true)
	_, r := seedVendorRestaurant(t, db, restaurantOpts{})

	users, total, err := admin.Users(ctx, models.RoleDelivery, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, *users.(*[]models.DeliveryPerson), 1)

	_, _, err = admin.Users(ctx, "pilot", Page{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, admin.SetUserActive(ctx, models.RoleDelivery, rider.ID, false))
	var fresh models.DeliveryPerson
	require.NoError(t, db.First(&fresh, rider.ID).Error)
	assert.False(t, fresh.IsActive)
	assert.False(t, fresh.IsAvailable)

	got, err := admin.SetRestaurantActive(ctx, r.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	list, total, err := admin.Restaurants(ctx, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "admins see inactive restaurants too")
	assert.Len(t, list, 1)
}
