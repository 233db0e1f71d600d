package orderitem_test

import (
	"testing"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceShipping(t *testing.T) {
	tests := []struct {
		name          string
		from          orderitem.ShippingStatus
		to            orderitem.ShippingStatus
		wantErr       error
		wantShipped   bool
		wantDelivered bool
	}{
		{name: "pending to shipped: ok", from: orderitem.ShippingPending, to: orderitem.ShippingShipped, wantShipped: true},
		{name: "shipped to delivered: ok", from: orderitem.ShippingShipped, to: orderitem.ShippingDelivered, wantShipped: true, wantDelivered: true},
		{name: "pending to delivered: ok", from: orderitem.ShippingPending, to: orderitem.ShippingDelivered, wantShipped: true, wantDelivered: true},
		{name: "shipped to shipped: fail", from: orderitem.ShippingShipped, to: orderitem.ShippingShipped, wantErr: errs.ErrInvalidTransition},
		{name: "delivered to shipped: fail", from: orderitem.ShippingDelivered, to: orderitem.ShippingShipped, wantErr: errs.ErrInvalidTransition},
		{name: "unknown status: fail", from: orderitem.ShippingPending, to: "lost", wantErr: errs.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := orderitem.OrderItem{ProductID: "p-1", ShippingStatus: tt.from}
			now := time.Now()

			err := item.AdvanceShipping(tt.to, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, item.ShippingStatus)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, item.ShippingStatus)
			assert.Equal(t, tt.wantShipped, item.ShippedAt != nil)
			assert.Equal(t, tt.wantDelivered, item.DeliveredAt != nil)
		})
	}
}

func TestAdvanceShippingKeepsFirstShippedAt(t *testing.T) {
	shippedAt := time.Now().Add(-48 * time.Hour)
	item := orderitem.OrderItem{ShippingStatus: orderitem.ShippingShipped, ShippedAt: &shippedAt}

	require.NoError(t, item.AdvanceShipping(orderitem.ShippingDelivered, time.Now()))
	assert.Equal(t, shippedAt, *item.ShippedAt)
}
