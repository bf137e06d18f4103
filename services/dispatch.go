package services

import (
	"context"
	"time"

	"food-marketplace-api/events"
	"food-marketplace-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Outcome of one assignment attempt
type Outcome string

const (
	OutcomeAssigned       Outcome = "assigned"
	OutcomeNoLocation     Outcome = "no-restaurant-location"
	OutcomeNoCandidate    Outcome = "no-candidate-in-range"
	OutcomeAlreadyClaimed Outcome = "already-claimed"
	OutcomeFailed         Outcome = "failed"
)

type Assignment struct {
	OrderID          uint    `json:"orderId"`
	Outcome          Outcome `json:"outcome"`
	DeliveryPersonID *uint   `json:"deliveryPersonId,omitempty"`
	DistanceKm       float64 `json:"distanceKm,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// SweepReport summarises one pass over the unassigned orders
type SweepReport struct {
	Scanned  int          `json:"scanned"`
	Assigned int          `json:"assigned"`
	Results  []Assignment `json:"results"`
}

// Dispatcher assigns the nearest available delivery person within a fixed radius
// of the restaurant. Both the on-demand path and the sweep use the same rule.
type Dispatcher struct {
	db       *gorm.DB
	locator  Locator
	events   events.Publisher
	log      logrus.FieldLogger
	radiusKm float64
	now      func() time.Time
}

func NewDispatcher(db *gorm.DB, locator Locator, publisher events.Publisher, log logrus.FieldLogger, radiusKm float64) *Dispatcher {
	return &Dispatcher{
		db:       db,
		locator:  locator,
		events:   publisher,
		log:      log,
		radiusKm: radiusKm,
		now:      time.Now,
	}
}

func (d *Dispatcher) RadiusKm() float64 { return d.radiusKm }

// AssignOrder tries to assign a single order right away
func (d *Dispatcher) AssignOrder(ctx context.Context, orderID uint) (Assignment, error) {
	var order models.Order
	if err := d.db.WithContext(ctx).Preload("Restaurant").First(&order, orderID).Error; err != nil {
		return Assignment{OrderID: orderID, Outcome: OutcomeFailed, Error: err.Error()}, notFoundOr(err, "Order")
	}
	a := d.assign(ctx, &order)
	d.logAssignment(a)
	return a, nil
}

// Sweep walks every active "Out for Delivery" order that nobody has picked up yet
func (d *Dispatcher) Sweep(ctx context.Context) (SweepReport, error) {
	var orders []models.Order
	err := d.db.WithContext(ctx).Preload("Restaurant").
		Where("status = ? AND delivery_person_id IS NULL AND is_active = ?", models.StatusOutForDelivery, true).
		Order("created_at asc").
		Find(&orders).Error
	if err != nil {
		return SweepReport{}, err
	}

	report := SweepReport{Scanned: len(orders), Results: make([]Assignment, 0, len(orders))}
	for i := range orders {
		if ctx.Err() != nil {
			break
		}
		a := d.assign(ctx, &orders[i])
		d.logAssignment(a)
		if a.Outcome == OutcomeAssigned {
			report.Assigned++
		}
		report.Results = append(report.Results, a)
	}
	return report, nil
}

// Run sweeps every interval until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.log.WithField("interval", interval.String()).Info("dispatch sweeper started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatch sweeper stopped")
			return
		case <-ticker.C:
			report, err := d.Sweep(ctx)
			if err != nil {
				d.log.WithError(err).Error("dispatch sweep failed")
				continue
			}
			if report.Scanned > 0 {
				d.log.WithFields(logrus.Fields{
					"scanned":  report.Scanned,
					"assigned": report.Assigned,
				}).Info("dispatch sweep finished")
			}
		}
	}
}

func (d *Dispatcher) assign(ctx context.Context, order *models.Order) Assignment {
	a := Assignment{OrderID: order.ID}
	if order.DeliveryPersonID != nil {
		a.Outcome = OutcomeAlreadyClaimed
		a.DeliveryPersonID = order.DeliveryPersonID
		return a
	}
	if order.Restaurant == nil {
		a.Outcome = OutcomeNoLocation
		return a
	}
	origin, ok := order.Restaurant.Location()
	if !ok {
		a.Outcome = OutcomeNoLocation
		return a
	}

	candidates, err := d.locator.Nearby(ctx, origin, d.radiusKm)
	if err != nil {
		a.Outcome, a.Error = OutcomeFailed, err.Error()
		return a
	}
	pick, ok, err := d.firstEligible(ctx, candidates)
	if err != nil {
		a.Outcome, a.Error = OutcomeFailed, err.Error()
		return a
	}
	if !ok {
		a.Outcome = OutcomeNoCandidate
		return a
	}

	// claim only if still unassigned; losing the race is reported, not retried
	now := d.now()
	res := d.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND delivery_person_id IS NULL", order.ID).
		Updates(map[string]interface{}{"delivery_person_id": pick.DeliveryPersonID, "assigned_at": now})
	if res.Error != nil {
		a.Outcome, a.Error = OutcomeFailed, res.Error.Error()
		return a
	}
	if res.RowsAffected == 0 {
		a.Outcome = OutcomeAlreadyClaimed
		return a
	}

	id := pick.DeliveryPersonID
	order.DeliveryPersonID = &id
	order.AssignedAt = &now
	a.Outcome = OutcomeAssigned
	a.DeliveryPersonID = &id
	a.DistanceKm = pick.DistanceKm

	e := events.New(events.OrderAssigned, order.ID, order.OrderNumber)
	e.RestaurantID = order.RestaurantID
	e.Status = string(order.Status)
	e.DeliveryPersonID = &id
	e.Actor = "system"
	if err := d.events.Publish(ctx, e); err != nil {
		d.log.WithError(err).WithField("order_id", order.ID).Warn("assignment event not published")
	}
	return a
}

// firstEligible re-checks candidates against the table, since a locator index may lag behind it
func (d *Dispatcher) firstEligible(ctx context.Context, candidates []Candidate) (Candidate, bool, error) {
	if len(candidates) == 0 {
		return Candidate{}, false, nil
	}
	ids := make([]uint, len(candidates))
	for i, c := range candidates {
		ids[i] = c.DeliveryPersonID
	}
	var eligible []uint
	err := d.db.WithContext(ctx).Model(&models.DeliveryPerson{}).
		Where("id IN ? AND is_active = ? AND is_available = ?", ids, true, true).
		Pluck("id", &eligible).Error
	if err != nil {
		return Candidate{}, false, err
	}
	ok := make(map[uint]bool, len(eligible))
	for _, id := range eligible {
		ok[id] = true
	}
	for _, c := range candidates {
		if ok[c.DeliveryPersonID] {
			return c, true, nil
		}
	}
	return Candidate{}, false, nil
}

func (d *Dispatcher) logAssignment(a Assignment) {
	entry := d.log.WithFields(logrus.Fields{"order_id": a.OrderID, "outcome": a.Outcome})
	switch a.Outcome {
	case OutcomeAssigned:
		entry.WithFields(logrus.Fields{
			"delivery_person_id": *a.DeliveryPersonID,
			"distance_km":        a.DistanceKm,
		}).Info("delivery person assigned")
	case OutcomeFailed:
		entry.WithField("error", a.Error).Error("assignment failed")
	default:
		entry.Info("order left unassigned")
	}
}
