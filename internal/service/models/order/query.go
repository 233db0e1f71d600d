package order

import (
	"time"

	"github.com/google/uuid"
)

// QueryOrdersModel represents filter parameters for querying orders.
// Fields have AND semantics, values within a slice OR semantics.
type QueryOrdersModel struct {
	Ids           []uuid.UUID `json:"ids,omitempty"`
	BuyerIds      []string    `json:"buyerIds,omitempty"`
	SellerIds     []string    `json:"sellerIds,omitempty"`
	Statuses      []Status    `json:"statuses,omitempty"`
	CreatedAfter  *time.Time  `json:"createdAfter,omitempty"`
	CreatedBefore *time.Time  `json:"createdBefore,omitempty"`
	Limit         int         `json:"limit,omitempty"`
	Offset        int         `json:"offset,omitempty"`
}
