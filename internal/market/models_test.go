package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartRecalculate(t *testing.T) {
	c := Cart{Items: []CartItem{
		{FabricID: "f1", Qty: 2, PriceCents: 150},
		{FabricID: "f2", Qty: 1, PriceCents: 999},
	}}
	c.Recalculate()

	assert.Equal(t, 3, c.TotalItems)
	assert.Equal(t, 2*150+999, c.TotalCents)
	assert.Equal(t, 300, c.Items[0].SubtotalCents)
	assert.Equal(t, 999, c.Items[1].SubtotalCents)

	c.Items = nil
	c.Recalculate()
	assert.Zero(t, c.TotalItems)
	assert.Zero(t, c.TotalCents)
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("TELEPORTED").Valid())

	assert.True(t, CanCancel(StatusPending))
	assert.True(t, CanCancel(StatusConfirmed))
	for _, s := range []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded} {
		assert.False(t, CanCancel(s), string(s))
	}

	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusRefunded.Terminal())
	assert.False(t, StatusShipped.Terminal())
}
