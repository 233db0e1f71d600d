package auditlog

import (
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/google/uuid"
)

// OrderStatusChange is one committed order status transition.
type OrderStatusChange struct {
	ID         int64      `json:"id"`
	OrderID    uuid.UUID  `json:"orderId"`
	FromStatus string     `json:"fromStatus"`
	ToStatus   string     `json:"toStatus"`
	ActorID    string     `json:"actorId"`
	ActorRole  actor.Role `json:"actorRole"`
	ChangedAt  time.Time  `json:"changedAt"`
}
