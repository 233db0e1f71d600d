package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type tags the kind of change a notification reports.
type Type string

const (
	TypeOrderPlaced      Type = "order_placed"
	TypeOrderStatus      Type = "order_status"
	TypePaymentSubmitted Type = "payment_submitted"
	TypeItemShipping     Type = "item_shipping"
	TypeDisputeOpened    Type = "dispute_opened"
	TypeDisputeMessage   Type = "dispute_message"
	TypeDisputeStatus    Type = "dispute_status"
)

// Severity drives how a client renders a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a durable per-recipient record of a state change.
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"eventId"`
	RecipientID string     `json:"recipientId"`
	Type        Type       `json:"type"`
	Severity    Severity   `json:"severity"`
	Icon        string     `json:"icon"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Link        *string    `json:"link,omitempty"`
	Read        bool       `json:"read"`
	CreatedAt   time.Time  `json:"createdAt"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// Page is a capped window of a recipient's newest notifications.
type Page struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unreadCount"`
}

// PushEvent is the name of the real-time channel event.
const PushEvent = "notification:new"

// Push is the frame delivered over the real-time channel.
type Push struct {
	Event        string       `json:"event"`
	Notification Notification `json:"notification"`
}

// NewPush wraps n into a real-time frame.
func NewPush(n Notification) Push {
	return Push{Event: PushEvent, Notification: n}
}
