package services

import (
	"context"
	"testing"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestVendorMenuManagement(t *testing.T) {
	db := newTestDB(t)
	svc := NewRestaurantService(db, newTestLogger())
	v, r := seedVendorRestaurant(t, db, restaurantOpts{})
	other, _ := seedVendorRestaurant(t, db, restaurantOpts{})
	ctx := context.Background()

	first, err := svc.AddMenuItem(ctx, vendorActor(v), v.ID, MenuItemInput{Name: "Samosa", Price: 20, Category: models.CategoryStarter, IsVeg: true})
	require.NoError(t, err)
	assert.True(t, first.IsAvailable)
	assert.Equal(t, 0, first.Position)

	second, err := svc.AddMenuItem(ctx, vendorActor(v), v.ID, MenuItemInput{Name: "Gulab Jamun", Price: 40, Category: models.CategoryDessert, IsVeg: true})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)

	_, err = svc.AddMenuItem(ctx, vendorActor(v), v.ID, MenuItemInput{Name: "Mystery", Price: 10, Category: "Brunch"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.AddMenuItem(ctx, vendorActor(other), v.ID, MenuItemInput{Name: "Hijack", Price: 10, Category: models.CategorySnack})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	price := 25.0
	updated, err := svc.UpdateMenuItem(ctx, vendorActor(v), v.ID, first.ID, MenuItemPatch{Price: &price, IsAvailable: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Price)
	assert.False(t, updated.IsAvailable)

	// public view hides unavailable items
	got, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.MenuItems, 1)
	assert.Equal(t, "Gulab Jamun", got.MenuItems[0].Name)

	all, err := svc.Menu(ctx, r.ID, MenuFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	desserts, err := svc.Menu(ctx, r.ID, MenuFilter{Category: models.CategoryDessert})
	require.NoError(t, err)
	assert.Len(t, desserts, 1)

	require.NoError(t, svc.DeleteMenuItem(ctx, vendorActor(v), v.ID, second.ID))
	err = svc.DeleteMenuItem(ctx, vendorActor(v), v.ID, second.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUpdateVendorRestaurant(t *testing.T) {
	db := newTestDB(t)
	svc := NewRestaurantService(db, newTestLogger())
	v, _ := seedVendorRestaurant(t, db, restaurantOpts{})
	ctx := context.Background()

	name := "Renamed"
	minOrder := 150.0
	got, err := svc.UpdateVendorRestaurant(ctx, vendorActor(v), v.ID, RestaurantPatch{
		Name:         &name,
		MinimumOrder: &minOrder,
		IsOpen:       boolPtr(false),
		Latitude:     floatPtr(12.97),
		Longitude:    floatPtr(77.59),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 150.0, got.MinimumOrder)
	assert.False(t, got.IsOpen)
	_, ok := got.Location()
	assert.True(t, ok)

	_, err = svc.UpdateVendorRestaurant(ctx, vendorActor(v), v.ID, RestaurantPatch{Latitude: floatPtr(1)})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.UpdateVendorRestaurant(ctx, vendorActor(v), v.ID, RestaurantPatch{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListAndSearchRestaurants(t *testing.T) {
	db := newTestDB(t)
	svc := NewRestaurantService(db, newTestLogger())
	_, a := seedVendorRestaurant(t, db, restaurantOpts{})
	_, b := seedVendorRestaurant(t, db, restaurantOpts{closed: true})
	_, hidden := seedVendorRestaurant(t, db, restaurantOpts{})
	require.NoError(t, db.Model(hidden).Update("is_active", false).Error)
	require.NoError(t, db.Model(b).Update("cuisine", "Chinese").Error)
	ctx := context.Background()

	list, total, err := svc.List(ctx, RestaurantFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	list, _, err = svc.List(ctx, RestaurantFilter{Open: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	list, _, err = svc.Search(ctx, "chin", Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	_, _, err = svc.Search(ctx, "  ", Page{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Get(ctx, hidden.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
