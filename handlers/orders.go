package handlers

import (
	"net/http"
	"strconv"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type OrderItemRequest struct {
	MenuItemID *uint   `json:"menuItemId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price" binding:"gte=0"`
	Quantity   int     `json:"quantity" binding:"required,min=1"`
}

type CustomerInfo struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Address string `json:"address" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
}

type PlaceOrderRequest struct {
	RestaurantID  uint               `json:"restaurantId" binding:"required"`
	CustomerInfo  CustomerInfo       `json:"customerInfo"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	TotalAmount   float64            `json:"totalAmount" binding:"required,gt=0"`
	Notes         string             `json:"notes"`
	PaymentMethod string             `json:"paymentMethod" binding:"omitempty,oneof=cash card upi wallet"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type VerifyOTPRequest struct {
	OTP string `json:"otp" binding:"required,len=4,numeric"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type RateRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review" binding:"max=1000"`
}

type OrderHandler struct {
	Responder
	Orders *services.OrderService
	// DebugOTP echoes the delivery code in the placement response
	DebugOTP bool
}

// PlaceOrder creates a new order
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}

	items := make([]services.OrderItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = services.OrderItemInput{MenuItemID: it.MenuItemID, Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}
	placed, err := h.Orders.PlaceOrder(c.Request.Context(), actorOf(c), services.PlaceOrderInput{
		RestaurantID:    req.RestaurantID,
		CustomerName:    req.CustomerInfo.Name,
		CustomerPhone:   req.CustomerInfo.Phone,
		CustomerAddress: req.CustomerInfo.Address,
		CustomerEmail:   req.CustomerInfo.Email,
		Items:           items,
		TotalAmount:     req.TotalAmount,
		Notes:           req.Notes,
		PaymentMethod:   models.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	data := gin.H{
		"orderId":               placed.Order.ID,
		"orderNumber":           placed.Order.OrderNumber,
		"status":                placed.Order.Status,
		"totalAmount":           placed.Order.TotalAmount,
		"estimatedDeliveryTime": placed.EstimatedDelivery,
		"order":                 placed.Order,
	}
	if h.DebugOTP {
		data["otp"] = placed.OTP
		data["otpExpiresAt"] = placed.OTPExpiresAt
	}
	h.OK(c, http.StatusCreated, "Order placed successfully", data)
}

// ListOrders returns the caller's orders; admins may narrow by role and userId
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, err := pageQuery(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	f := services.OrderFilter{
		Role:   roleParam(c.Query("role")),
		Status: models.OrderStatus(c.Query("status")),
		Page:   page,
	}
	if v := c.Query("userId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			h.Error(c, apperr.Validation("userId must be a positive integer"))
			return
		}
		f.UserID = uint(id)
	}

	orders, total, err := h.Orders.ListOrders(c.Request.Context(), actorOf(c), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Orders fetched", gin.H{
		"orders":     orders,
		"pagination": pageOf(page.Page, page.Limit, total),
	})
}

// GetOrder returns a single order's full detail with history
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	order, err := h.Orders.GetOrder(c.Request.Context(), actorOf(c), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Order fetched", order)
}

// UpdateStatus advances an order through the state machine
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}

	order, assignment, err := h.Orders.UpdateStatus(c.Request.Context(), actorOf(c), id, models.OrderStatus(req.Status), req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}
	data := gin.H{"order": order}
	message := "Order status updated to " + string(order.Status)
	if assignment != nil {
		data["assignment"] = assignment
		if assignment.Outcome != services.OutcomeAssigned {
			message += "; no delivery person assigned yet"
		}
	}
	h.OK(c, http.StatusOK, message, data)
}

// VerifyOTP confirms delivery with the customer's code
func (h *OrderHandler) VerifyOTP(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	order, err := h.Orders.VerifyOTP(c.Request.Context(), actorOf(c), id, req.OTP)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "OTP verified, order delivered", order)
}

// CancelOrder cancels an order that is not yet delivered
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req CancelRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Error(c, err)
			return
		}
	}
	order, err := h.Orders.Cancel(c.Request.Context(), actorOf(c), id, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Order cancelled successfully", order)
}

// RateOrder records a 1-5 rating on a delivered order
func (h *OrderHandler) RateOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	order, err := h.Orders.Rate(c.Request.Context(), actorOf(c), id, req.Rating, req.Review)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Thank you for your rating", order)
}
