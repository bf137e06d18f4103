package statemachine

import (
	"fmt"
	"strings"

	"food-marketplace-api/models"
)

// Actor is who performs a transition
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorVendor   Actor = "vendor"
	ActorDelivery Actor = "delivery"
	ActorAdmin    Actor = "admin"
	// ActorSystem covers transitions driven by the service itself, e.g. OTP confirmation
	ActorSystem Actor = "system"
)

// ActorFor maps an account role onto the actor it plays in the order lifecycle
func ActorFor(role models.Role) Actor {
	return Actor(role)
}

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.OrderStatus `json:"from"`
	To    models.OrderStatus `json:"to"`
	Actor Actor              `json:"actor"`
}

// validTransitions is the authoritative state machine definition
var validTransitions = buildTransitions()

func buildTransitions() []Transition {
	var ts []Transition
	forward := []struct {
		from, to models.OrderStatus
		actors   []Actor
	}{
		{models.StatusPlaced, models.StatusAccepted, []Actor{ActorVendor, ActorAdmin}},
		{models.StatusAccepted, models.StatusPreparing, []Actor{ActorVendor, ActorAdmin}},
		{models.StatusPreparing, models.StatusOutForDelivery, []Actor{ActorVendor, ActorAdmin}},
		// delivery is confirmed by OTP, or forced by an admin
		{models.StatusOutForDelivery, models.StatusDelivered, []Actor{ActorSystem, ActorAdmin}},
	}
	for _, f := range forward {
		for _, a := range f.actors {
			ts = append(ts, Transition{From: f.from, To: f.to, Actor: a})
		}
	}
	// any non-terminal state may be cancelled
	for _, s := range models.OrderStatuses {
		if s.Terminal() {
			continue
		}
		for _, a := range []Actor{ActorCustomer, ActorVendor, ActorAdmin} {
			ts = append(ts, Transition{From: s, To: models.StatusCancelled, Actor: a})
		}
	}
	return ts
}

// transitionKey is used to look up valid transitions quickly
type transitionKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// CanTransition checks if a given actor can move from one state to another
func CanTransition(from, to models.OrderStatus, actor Actor) error {
	if from.Terminal() {
		return fmt.Errorf("order is already %s; no further status changes are allowed", from)
	}
	if transitionMap[transitionKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	return fmt.Errorf("invalid transition: %s → %s is not allowed for actor '%s'. Valid transitions from %s are: %s",
		from, to, actor, from, describeValidFrom(from))
}

func describeValidFrom(status models.OrderStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}
