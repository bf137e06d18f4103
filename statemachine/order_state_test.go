package statemachine

import (
	"testing"

	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
)

func TestForwardSequence(t *testing.T) {
	seq := []models.OrderStatus{
		models.StatusPlaced, models.StatusAccepted, models.StatusPreparing, models.StatusOutForDelivery,
	}
	for i := 0; i < len(seq)-1; i++ {
		assert.NoError(t, CanTransition(seq[i], seq[i+1], ActorVendor), "%s → %s", seq[i], seq[i+1])
	}
	assert.NoError(t, CanTransition(models.StatusOutForDelivery, models.StatusDelivered, ActorSystem))
	assert.NoError(t, CanTransition(models.StatusOutForDelivery, models.StatusDelivered, ActorAdmin))
}

func TestSkippingAndGoingBackFails(t *testing.T) {
	assert.Error(t, CanTransition(models.StatusPlaced, models.StatusPreparing, ActorVendor))
	assert.Error(t, CanTransition(models.StatusPreparing, models.StatusAccepted, ActorVendor))
	assert.Error(t, CanTransition(models.StatusPlaced, models.StatusPlaced, ActorAdmin))
	// vendors cannot mark delivery themselves
	assert.Error(t, CanTransition(models.StatusOutForDelivery, models.StatusDelivered, ActorVendor))
	// customers cannot progress an order
	assert.Error(t, CanTransition(models.StatusPlaced, models.StatusAccepted, ActorCustomer))
}

func TestCancelFromAnyNonTerminal(t *testing.T) {
	for _, s := range models.OrderStatuses {
		if s.Terminal() {
			continue
		}
		for _, a := range []Actor{ActorCustomer, ActorVendor, ActorAdmin} {
			assert.NoError(t, CanTransition(s, models.StatusCancelled, a), "%s by %s", s, a)
		}
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, from := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
		assert.Empty(t, ValidTransitionsFrom(from))
		for _, to := range models.OrderStatuses {
			for _, a := range []Actor{ActorCustomer, ActorVendor, ActorDelivery, ActorAdmin, ActorSystem} {
				assert.Error(t, CanTransition(from, to, a), "%s → %s by %s", from, to, a)
			}
		}
	}
}

func TestValidTransitionsFrom(t *testing.T) {
	assert.ElementsMatch(t,
		[]models.OrderStatus{models.StatusAccepted, models.StatusCancelled},
		ValidTransitionsFrom(models.StatusPlaced))
}
