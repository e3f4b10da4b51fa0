package model

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order statuses. New orders start as processing.
const (
	StatusProcessing OrderStatus = "processing"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusArchived   OrderStatus = "archived"
)

// OrderStatuses lists every status in display order.
var OrderStatuses = []OrderStatus{
	StatusProcessing,
	StatusConfirmed,
	StatusCompleted,
	StatusCancelled,
	StatusArchived,
}

var statusLabels = map[OrderStatus]string{
	StatusProcessing: "В обработке",
	StatusConfirmed:  "Подтвержден",
	StatusCompleted:  "Выполнен",
	StatusCancelled:  "Отменен",
	StatusArchived:   "Архивный",
}

// transitions maps each status to the statuses it may move to. Completed and
// cancelled orders may be reopened; a user still has at most one processing
// order at a time.
var transitions = map[OrderStatus][]OrderStatus{
	StatusProcessing: {StatusConfirmed, StatusCompleted, StatusCancelled, StatusArchived},
	StatusConfirmed:  {StatusCompleted, StatusCancelled, StatusArchived},
	StatusCompleted:  {StatusProcessing, StatusArchived},
	StatusCancelled:  {StatusProcessing, StatusArchived},
	StatusArchived:   nil,
}

// ParseOrderStatus validates a raw status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := statusLabels[st]; !ok {
		return "", NewValidationError("status", "unknown status "+s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the Russian display label. Unknown values are returned as-is.
func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// CanTransition reports whether an order may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is a submitted request for products.
type Order struct {
	ID            int64       `json:"id"`
	UserID        string      `json:"user_id"`
	Status        OrderStatus `json:"status"`
	Total         int64       `json:"total"`
	Phone         string      `json:"phone,omitempty"`
	Address       string      `json:"address,omitempty"`
	Comments      string      `json:"comments,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Items         []OrderItem `json:"items"`
}

// ItemCount returns the sum of line item quantities.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OrderItem is a line of an order. Name and unit are copied from the product
// at submission time so later catalog edits do not rewrite history.
type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   *int64 `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	ProductUnit string `json:"product_unit"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

// OrderLine is a requested product and quantity.
type OrderLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderDetails are the contact fields copied onto an order header.
type OrderDetails struct {
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Comments string `json:"comments"`
}

// Stats holds the admin dashboard counters.
type Stats struct {
	TotalOrders      int     `json:"total_orders"`
	ProcessingOrders int     `json:"processing_orders"`
	ConfirmedOrders  int     `json:"confirmed_orders"`
	CompletedOrders  int     `json:"completed_orders"`
	Products         int     `json:"products"`
	Users            int     `json:"users"`
	RecentOrders     []Order `json:"recent_orders"`
}
