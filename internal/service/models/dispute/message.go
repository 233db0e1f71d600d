package dispute

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/google/uuid"
)

// MaxAttachments bounds the attachment references carried by one message.
const MaxAttachments = 10

// Message is an append-only entry in a dispute thread.
type Message struct {
	ID          uuid.UUID  `json:"id"`
	DisputeID   uuid.UUID  `json:"disputeId"`
	SenderID    string     `json:"senderId"`
	SenderRole  actor.Role `json:"senderRole"`
	Body        *string    `json:"body,omitempty"`
	Attachments []string   `json:"attachments"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ValidateAttachments checks that every reference is an absolute http(s) URL.
// The content behind the URL is never interpreted.
func ValidateAttachments(attachments []string) error {
	if len(attachments) > MaxAttachments {
		return fmt.Errorf("%w: at most %d attachments per message", errs.ErrInvalidArgument, MaxAttachments)
	}

	for _, raw := range attachments {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: attachment %q is not an absolute http(s) url", errs.ErrInvalidArgument, raw)
		}
	}

	return nil
}

func newMessage(
	disputeID uuid.UUID,
	sender actor.Actor,
	body string,
	attachments []string,
	at time.Time,
) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" && len(attachments) == 0 {
		return Message{}, errs.ErrEmptyMessage
	}

	if err := ValidateAttachments(attachments); err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:          uuid.New(),
		DisputeID:   disputeID,
		SenderID:    sender.ID,
		SenderRole:  sender.Role,
		Attachments: append([]string{}, attachments...),
		CreatedAt:   at,
	}
	if body != "" {
		msg.Body = &body
	}

	return msg, nil
}
