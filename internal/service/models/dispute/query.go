package dispute

import "github.com/google/uuid"

// QueryDisputesModel represents filter parameters for querying disputes.
type QueryDisputesModel struct {
	Ids       []uuid.UUID `json:"ids,omitempty"`
	OrderIds  []uuid.UUID `json:"orderIds,omitempty"`
	BuyerIds  []string    `json:"buyerIds,omitempty"`
	SellerIds []string    `json:"sellerIds,omitempty"`
	Statuses  []Status    `json:"statuses,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}
