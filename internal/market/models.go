package market

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleShop     Role = "shop"
	RoleAdmin    Role = "admin"
)

// Principal is the authenticated caller, supplied by the upstream auth layer.
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type Fabric struct {
	ID             string
	ShopID         string
	Name           string
	PriceCents     int
	Stock          int
	TotalPurchases int
	Rating         float64 // derived: mean of review ratings, 0 if none
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Review struct {
	ID         string
	FabricID   string
	ReviewerID string
	Rating     int // 1..5
	Comment    string
	CreatedAt  time.Time
}

type Shop struct {
	ID           string
	Name         string
	Rating       float64 // derived: mean of per-fabric mean ratings
	TotalReviews int     // derived: sum of review counts across rated fabrics
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CartItem struct {
	FabricID      string
	Qty           int
	PriceCents    int // refreshed to current fabric price on every mutation
	SubtotalCents int
}

type Cart struct {
	CustomerID string
	Items      []CartItem
	TotalItems int
	TotalCents int
	UpdatedAt  time.Time
}

// Recalculate rebuilds the derived totals from the item list.
func (c *Cart) Recalculate() {
	c.TotalItems = 0
	c.TotalCents = 0
	for i := range c.Items {
		c.Items[i].SubtotalCents = c.Items[i].PriceCents * c.Items[i].Qty
		c.TotalItems += c.Items[i].Qty
		c.TotalCents += c.Items[i].SubtotalCents
	}
}

type ShippingMethod string

const (
	ShipStandard ShippingMethod = "standard"
	ShipExpress  ShippingMethod = "express"
	ShipSameDay  ShippingMethod = "same-day"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// OrderItem is a value snapshot: price is frozen at reservation time and
// never re-derived from the fabric's current price.
type OrderItem struct {
	FabricID      string
	Qty           int
	PriceCents    int
	SubtotalCents int
}

type Order struct {
	ID                string
	CustomerID        string
	Items             []OrderItem
	SubtotalCents     int
	ShippingCents     int
	TaxCents          int
	TotalCents        int
	Status            Status
	PaymentStatus     PaymentStatus
	PaymentMethod     string
	ShippingMethod    ShippingMethod
	ShippingAddress   string
	EstimatedDelivery time.Time
	TrackingNumber    string // assigned once, on first transition into Shipped
	DeliveredAt       *time.Time
	CancelReason      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
