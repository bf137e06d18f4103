package handlers

import (
	"net/http"

	"food-marketplace-api/geo"
	"food-marketplace-api/models"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type LocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
}

type AvailabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" binding:"required"`
}

type DeliveryHandler struct {
	Responder
	Delivery *services.DeliveryService
	Orders   *services.OrderService
}

// UpdateLocation records where a delivery person is now
func (h *DeliveryHandler) UpdateLocation(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	person, err := h.Delivery.UpdateLocation(c.Request.Context(), actorOf(c), id, geo.Point{Lat: *req.Latitude, Lng: *req.Longitude})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Location updated", person)
}

func (h *DeliveryHandler) UpdateAvailability(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	person, err := h.Delivery.UpdateAvailability(c.Request.Context(), actorOf(c), id, *req.IsAvailable)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Availability updated", person)
}

// VerifyOTP completes a hand-off; :id is the order here
func (h *DeliveryHandler) VerifyOTP(c *gin.Context) {
	orderID, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	order, err := h.Orders.VerifyOTP(c.Request.Context(), actorOf(c), orderID, req.OTP)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "OTP verified, order delivered", order)
}

// GetOrders lists the orders assigned to a delivery person
func (h *DeliveryHandler) GetOrders(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	page, err := pageQuery(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	orders, total, err := h.Delivery.Orders(c.Request.Context(), actorOf(c), id, models.OrderStatus(c.Query("status")), page)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Orders fetched", gin.H{
		"orders":     orders,
		"pagination": pageOf(page.Page, page.Limit, total),
	})
}
