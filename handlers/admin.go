package handlers

import (
	"net/http"

	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type ActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

type AdminHandler struct {
	Responder
	Admin      *services.AdminService
	Dispatcher *services.Dispatcher
}

// Dashboard aggregates users, restaurants, orders and delivered revenue
func (h *AdminHandler) Dashboard(c *gin.Context) {
	d, err := h.Admin.Dashboard(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Dashboard fetched", d)
}

// GetRestaurants includes inactive restaurants
func (h *AdminHandler) GetRestaurants(c *gin.Context) {
	page, err := pageQuery(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	restaurants, total, err := h.Admin.Restaurants(c.Request.Context(), page)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Restaurants fetched", gin.H{
		"restaurants": restaurants,
		"pagination":  pageOf(page.Page, page.Limit, total),
	})
}

func (h *AdminHandler) SetRestaurantStatus(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	restaurant, err := h.Admin.SetRestaurantActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Restaurant status updated", restaurant)
}

// GetUsers lists one role's accounts, customers by default
func (h *AdminHandler) GetUsers(c *gin.Context) {
	page, err := pageQuery(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	role := roleParam(c.Query("role"))
	users, total, err := h.Admin.Users(c.Request.Context(), role, page)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Users fetched", gin.H{
		"users":      users,
		"pagination": pageOf(page.Page, page.Limit, total),
	})
}

func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req ActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.Admin.SetUserActive(c.Request.Context(), roleParam(c.Param("role")), id, *req.IsActive); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "User status updated", gin.H{"id": id, "isActive": *req.IsActive})
}

// Sweep runs one assignment pass over unassigned out-for-delivery orders
func (h *AdminHandler) Sweep(c *gin.Context) {
	report, err := h.Dispatcher.Sweep(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Assignment sweep complete", report)
}
