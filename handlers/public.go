package handlers

import (
	"net/http"

	"food-marketplace-api/models"
	"food-marketplace-api/services"
	"food-marketplace-api/statemachine"

	"github.com/gin-gonic/gin"
)

type PublicHandler struct {
	Responder
	Restaurants *services.RestaurantService
}

// ListRestaurants returns active restaurants, best rated first
func (h *PublicHandler) ListRestaurants(c *gin.Context) {
	page, err := pageQuery(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	open, err := optionalBool(c, "open")
	if err != nil {
		h.Error(c, err)
		return
	}

	restaurants, total, err := h.Restaurants.List(c.Request.Context(), services.RestaurantFilter{
		Cuisine: c.Query("cuisine"),
		Search:  c.Query("search"),
		Open:    open,
		Page:    page,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Restaurants fetched", gin.H{
		"restaurants": restaurants,
		"pagination":  pageOf(page.Page, page.Limit, total),
	})
}

// SearchRestaurants matches name, cuisine and description
func (h *PublicHandler) SearchRestaurants(c *gin.Context) {
	page, err := pageQuery(c)
	if err != nil {
		h.Error(c, err)
		return
	}
	restaurants, total, err := h.Restaurants.Search(c.Request.Context(), c.Param("query"), page)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Search results", gin.H{
		"restaurants": restaurants,
		"pagination":  pageOf(page.Page, page.Limit, total),
	})
}

func (h *PublicHandler) GetRestaurant(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	restaurant, err := h.Restaurants.Get(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Restaurant fetched", restaurant)
}

// GetMenu returns a restaurant's available items, optionally by category or veg
func (h *PublicHandler) GetMenu(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.Error(c, err)
		return
	}
	veg, err := optionalBool(c, "isVeg")
	if err != nil {
		h.Error(c, err)
		return
	}
	items, err := h.Restaurants.Menu(c.Request.Context(), id, services.MenuFilter{
		Category:      models.MenuCategory(c.Query("category")),
		Veg:           veg,
		AvailableOnly: true,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, http.StatusOK, "Menu fetched", gin.H{"count": len(items), "menu": items})
}

// GetStateMachineInfo describes the order lifecycle
func (h *PublicHandler) GetStateMachineInfo(c *gin.Context) {
	var terminal []models.OrderStatus
	for _, s := range models.OrderStatuses {
		if s.Terminal() {
			terminal = append(terminal, s)
		}
	}
	h.OK(c, http.StatusOK, "Order lifecycle", gin.H{
		"statuses":       models.OrderStatuses,
		"transitions":    statemachine.GetAllTransitions(),
		"terminalStates": terminal,
	})
}

// Health reports liveness
func (h *PublicHandler) Health(c *gin.Context) {
	h.OK(c, http.StatusOK, "healthy", gin.H{
		"service": "Food Marketplace API",
		"version": "1.0.0",
	})
}
