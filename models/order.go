package models

import "time"

// OrderStatus represents all possible states of a food delivery order
type OrderStatus string

const (
	StatusPlaced         OrderStatus = "Order Placed"
	StatusAccepted       OrderStatus = "Accepted"
	StatusPreparing      OrderStatus = "Preparing"
	StatusOutForDelivery OrderStatus = "Out for Delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
)

// OrderStatuses lists the statuses in lifecycle order, Cancelled last
var OrderStatuses = []OrderStatus{
	StatusPlaced, StatusAccepted, StatusPreparing, StatusOutForDelivery, StatusDelivered, StatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, k := range OrderStatuses {
		if k == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
	PaymentWallet PaymentMethod = "wallet"
)

type Order struct {
	ID               uint                 `json:"id" gorm:"primaryKey"`
	OrderNumber      string               `json:"orderNumber" gorm:"uniqueIndex;not null"`
	RestaurantID     uint                 `json:"restaurantId" gorm:"index;not null"`
	Restaurant       *Restaurant          `json:"restaurant,omitempty" gorm:"foreignKey:RestaurantID"`
	CustomerID       *uint                `json:"customerId,omitempty" gorm:"index"`
	CustomerName     string               `json:"customerName" gorm:"not null"`
	CustomerPhone    string               `json:"customerPhone" gorm:"not null"`
	CustomerAddress  string               `json:"customerAddress" gorm:"not null"`
	CustomerEmail    string               `json:"customerEmail"`
	Items            []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	Subtotal         float64              `json:"subtotal"`
	DeliveryFee      float64              `json:"deliveryFee"`
	TotalAmount      float64              `json:"totalAmount"`
	Notes            string               `json:"notes"`
	PaymentMethod    PaymentMethod        `json:"paymentMethod"`
	Status           OrderStatus          `json:"status" gorm:"index;not null"`
	OTP              OTP                  `json:"-" gorm:"embedded;embeddedPrefix:otp_"`
	DeliveredAt      *time.Time           `json:"deliveredAt,omitempty"`
	DeliveryPersonID *uint                `json:"deliveryPersonId" gorm:"index"`
	DeliveryPerson   *DeliveryPerson      `json:"deliveryPerson,omitempty" gorm:"foreignKey:DeliveryPersonID"`
	AssignedAt       *time.Time           `json:"assignedAt,omitempty"`
	Rating           *int                 `json:"rating,omitempty"`
	Review           string               `json:"review,omitempty"`
	RatedAt          *time.Time           `json:"ratedAt,omitempty"`
	CancelReason     string               `json:"cancelReason,omitempty"`
	IsActive         bool                 `json:"isActive" gorm:"index"`
	StatusHistory    []OrderStatusHistory `json:"statusHistory,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

type OrderItem struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	OrderID    uint    `json:"orderId" gorm:"index;not null"`
	MenuItemID *uint   `json:"menuItemId,omitempty"`
	Name       string  `json:"name" gorm:"not null"`  // snapshot name
	Price      float64 `json:"price" gorm:"not null"` // snapshot unit price
	Quantity   int     `json:"quantity" gorm:"not null"`
	LineTotal  float64 `json:"lineTotal"`
}

// OrderStatusHistory is the audit trail of every status change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"orderId" gorm:"index;not null"`
	FromStatus OrderStatus `json:"fromStatus"`
	ToStatus   OrderStatus `json:"toStatus" gorm:"not null"`
	ActorRole  string      `json:"actorRole"`
	ActorID    uint        `json:"actorId"`
	Note       string      `json:"note"`
	CreatedAt  time.Time   `json:"createdAt"`
}
