package services

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"food-marketplace-api/geo"
	"food-marketplace-api/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Candidate is a delivery person near a point
type Candidate struct {
	DeliveryPersonID uint
	DistanceKm       float64
}

// Locator finds available delivery persons around a point, nearest first
type Locator interface {
	Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]Candidate, error)
	// Track is told whenever a delivery person's position or availability changes
	Track(ctx context.Context, d *models.DeliveryPerson) error
}

// DBLocator pre-filters rows with a bounding box and ranks them by Haversine distance
type DBLocator struct {
	DB *gorm.DB
}

func (l DBLocator) Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]Candidate, error) {
	box := geo.BoundingBox(p, radiusKm)
	q := l.DB.WithContext(ctx).
		Where("is_active = ? AND is_available = ?", true, true).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	// a box crossing the antimeridian cannot be expressed as one range
	if box.MinLng >= -180 && box.MaxLng <= 180 {
		q = q.Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}

	var people []models.DeliveryPerson
	if err := q.Find(&people).Error; err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(people))
	for i := range people {
		loc, ok := people[i].Location()
		if !ok {
			continue
		}
		if d := geo.Distance(p, loc); d <= radiusKm {
			out = append(out, Candidate{DeliveryPersonID: people[i].ID, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

// Track is a no-op: the table itself is the index
func (DBLocator) Track(context.Context, *models.DeliveryPerson) error { return nil }

// RedisLocator keeps available delivery persons in a redis GEO set
type RedisLocator struct {
	Client redis.UniversalClient
	Key    string
}

func NewRedisLocator(client redis.UniversalClient) *RedisLocator {
	return &RedisLocator{Client: client, Key: "delivery-persons-locations"}
}

func (l *RedisLocator) Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]Candidate, error) {
	locs, err := l.Client.GeoSearchLocation(ctx, l.Key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithDist: true,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(locs))
	for _, loc := range locs {
		id, err := strconv.ParseUint(loc.Name, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Candidate{DeliveryPersonID: uint(id), DistanceKm: loc.Dist})
	}
	return out, nil
}

// Track adds an available, located person to the set and removes anyone else
func (l *RedisLocator) Track(ctx context.Context, d *models.DeliveryPerson) error {
	member := strconv.FormatUint(uint64(d.ID), 10)
	loc, ok := d.Location()
	if !ok || !d.IsAvailable || !d.IsActive {
		return l.Client.ZRem(ctx, l.Key, member).Err()
	}
	return l.Client.GeoAdd(ctx, l.Key, &redis.GeoLocation{
		Name:      member,
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
	}).Err()
}

// Rebuild loads every available, located delivery person from the database into the set
func (l *RedisLocator) Rebuild(ctx context.Context, db *gorm.DB) (int, error) {
	var people []models.DeliveryPerson
	err := db.WithContext(ctx).
		Where("is_active = ? AND is_available = ?", true, true).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&people).Error
	if err != nil {
		return 0, err
	}
	if err := l.Client.Del(ctx, l.Key).Err(); err != nil {
		return 0, err
	}
	for i := range people {
		if err := l.Track(ctx, &people[i]); err != nil {
			return i, err
		}
	}
	return len(people), nil
}
