package services

import (
	"context"
	"testing"

	"food-marketplace-api/apperr"
	"food-marketplace-api/geo"
	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingLocator remembers what it was told
type trackingLocator struct {
	DBLocator
	tracked []uint
}

func (l *trackingLocator) Track(_ context.Context, d *models.DeliveryPerson) error {
	l.tracked = append(l.tracked, d.ID)
	return nil
}

func TestDeliveryLocationAndAvailability(t *testing.T) {
	f := newOrderFixture(t)
	loc := &trackingLocator{DBLocator: DBLocator{DB: f.db}}
	svc := NewDeliveryService(f.db, loc, f.orders, newTestLogger())
	rider := seedDeliveryPerson(t, f.db, 12.0, 77.0, true)
	me := Actor{Role: models.RoleDelivery, ID: rider.ID}
	ctx := context.Background()

	got, err := svc.UpdateLocation(ctx, me, rider.ID, geo.Point{Lat: 12.5, Lng: 77.5})
	require.NoError(t, err)
	p, ok := got.Location()
	require.True(t, ok)
	assert.Equal(t, 12.5, p.Lat)
	assert.NotNil(t, got.LocationUpdatedAt)

	_, err = svc.UpdateLocation(ctx, me, rider.ID, geo.Point{Lat: 91, Lng: 0})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	got, err = svc.UpdateAvailability(ctx, me, rider.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.Equal(t, []uint{rider.ID, rider.ID}, loc.tracked)

	other := seedDeliveryPerson(t, f.db, 12.0, 77.0, true)
	_, err = svc.UpdateAvailability(ctx, me, other.ID, false)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.UpdateAvailability(ctx, adminActor, 99999, true)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeliveryOrdersListsAssignedOnly(t *testing.T) {
	f := newOrderFixture(t)
	svc := NewDeliveryService(f.db, DBLocator{DB: f.db}, f.orders, newTestLogger())
	placed, rider, _, _ := readyForDelivery(t, f)
	ctx := context.Background()

	orders, total, err := svc.Orders(ctx, Actor{Role: models.RoleDelivery, ID: rider.ID}, rider.ID, "", Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, placed.Order.ID, orders[0].ID)

	_, total, err = svc.Orders(ctx, adminActor, rider.ID, models.StatusDelivered, Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
