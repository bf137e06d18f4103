// Package services holds the marketplace business logic: order lifecycle,
// delivery dispatch, the OTP-gated auth workflow and the entity stores around them.
package services

import (
	"errors"
	"strings"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
	"food-marketplace-api/statemachine"

	"gorm.io/gorm"
)

// Actor identifies who is calling a service operation
type Actor struct {
	Role models.Role
	ID   uint
}

// Is reports whether the actor holds the given role
func (a Actor) Is(role models.Role) bool {
	return a.Role == role
}

func (a Actor) machineActor() statemachine.Actor {
	return statemachine.ActorFor(a.Role)
}

// Page bounds a listing
type Page struct {
	Page  int
	Limit int
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}

// notFoundOr turns gorm's record-not-found into a NotFound error, wrapping anything else as internal
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return apperr.Internal("failed to load "+strings.ToLower(what), err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
