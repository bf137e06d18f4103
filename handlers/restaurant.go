package handlers

import (
	"net/http"

	"food-marketplace-api/models"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

// ── Vendor restaurant ────────────────────────────────────────────────────────

type UpdateRestaurantRequest struct {
	Name            *string  `json:"name" binding:"omitempty,min=1"`
	Description     *string  `json:"description"`
	Cuisine         *string  `json:"cuisine"`
	Address         *string  `json:"address"`
	Phone           *string  `json:"phone"`
	DeliveryTimeMin *int     `json:"deliveryTimeMin" binding:"omitempty,min=0"`
	DeliveryTimeMax *int     `json:"deliveryTimeMax" binding:"omitempty,min=0"`
	MinimumOrder    *float64 `json:"minimumOrder" binding:"omitempty,gte=0"`
	DeliveryFee     *float64 `json:"deliveryFee" binding:"omitempty,gte=0"`
	IsOpen          *bool    `json:"isOpen"`
	Latitude        *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude       *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
}

type VendorHandler struct {
	Responder
	Restaurants *services.RestaurantService
}

func (h *VendorHandler) GetRestaurant(c *gin.Context) {
	vendorID, err := parseID(c, "vendorId")
	if err != nil {
		h.Error(c, err)
		return
	}
	restaurant, err := h.Restaurants.VendorRestaurant(c.Request.Context(), actorOf(c), vendorID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Restaurant fetched", restaurant)
}

func (h *VendorHandler) UpdateRestaurant(c *gin.Context) {
	vendorID, err := parseID(c, "vendorId")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req UpdateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	restaurant, err := h.Restaurants.UpdateVendorRestaurant(c.Request.Context(), actorOf(c), vendorID, services.RestaurantPatch{
		Name:            req.Name,
		Description:     req.Description,
		Cuisine:         req.Cuisine,
		Address:         req.Address,
		Phone:           req.Phone,
		DeliveryTimeMin: req.DeliveryTimeMin,
		DeliveryTimeMax: req.DeliveryTimeMax,
		MinimumOrder:    req.MinimumOrder,
		DeliveryFee:     req.DeliveryFee,
		IsOpen:          req.IsOpen,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Restaurant updated", restaurant)
}

// ── Menu Management ──────────────────────────────────────────────────────────

type MenuItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Category    string  `json:"category" binding:"required"`
	IsVeg       bool    `json:"isVeg"`
	IsAvailable *bool   `json:"isAvailable"`
	PrepTime    int     `json:"prepTime" binding:"gte=0"`
	Position    *int    `json:"position" binding:"omitempty,gte=0"`
}

type UpdateMenuItemRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gt=0"`
	Category    *string  `json:"category"`
	IsVeg       *bool    `json:"isVeg"`
	IsAvailable *bool    `json:"isAvailable"`
	PrepTime    *int     `json:"prepTime" binding:"omitempty,gte=0"`
	Position    *int     `json:"position" binding:"omitempty,gte=0"`
}

func (h *VendorHandler) AddMenuItem(c *gin.Context) {
	vendorID, err := parseID(c, "vendorId")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}
	item, err := h.Restaurants.AddMenuItem(c.Request.Context(), actorOf(c), vendorID, services.MenuItemInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    models.MenuCategory(req.Category),
		IsVeg:       req.IsVeg,
		IsAvailable: req.IsAvailable,
		PrepTime:    req.PrepTime,
		Position:    req.Position,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusCreated, "Menu item added", item)
}

func (h *VendorHandler) UpdateMenuItem(c *gin.Context) {
	vendorID, err := parseID(c, "vendorId")
	if err != nil {
		h.Error(c, err)
		return
	}
	itemID, err := parseID(c, "menuItemId")
	if err != nil {
		h.Error(c, err)
		return
	}
	var req UpdateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, err)
		return
	}

	patch := services.MenuItemPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		IsVeg:       req.IsVeg,
		IsAvailable: req.IsAvailable,
		PrepTime:    req.PrepTime,
		Position:    req.Position,
	}
	if req.Category != nil {
		category := models.MenuCategory(*req.Category)
		patch.Category = &category
	}
	item, err := h.Restaurants.UpdateMenuItem(c.Request.Context(), actorOf(c), vendorID, itemID, patch)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Menu item updated", item)
}

func (h *VendorHandler) DeleteMenuItem(c *gin.Context) {
	vendorID, err := parseID(c, "vendorId")
	if err != nil {
		h.Error(c, err)
		return
	}
	itemID, err := parseID(c, "menuItemId")
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.Restaurants.DeleteMenuItem(c.Request.Context(), actorOf(c), vendorID, itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Menu item deleted", nil)
}
