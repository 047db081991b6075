package orders

import (
	"math"

	"github.com/fabricmart/go-fabric-market/internal/market"
)

const taxRate = 0.18

type shippingRate struct {
	CostCents    int
	DeliveryDays int
}

// Express shares Standard's cost while promising fewer days; the asymmetry is
// intentional pricing, not a bug.
var shippingRates = map[market.ShippingMethod]shippingRate{
	market.ShipStandard: {CostCents: 100, DeliveryDays: 5},
	market.ShipExpress:  {CostCents: 100, DeliveryDays: 2},
	market.ShipSameDay:  {CostCents: 200, DeliveryDays: 0},
}

func taxFor(subtotalCents int) int {
	return int(math.Round(float64(subtotalCents) * taxRate))
}
