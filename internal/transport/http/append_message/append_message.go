package appendmessage

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/google/uuid"
)

type service interface {
	AppendMessage(ctx context.Context, a actor.Actor, disputeID uuid.UUID, body string, attachments []string) (dispute.Message, error)
	AppendMessageToOrder(ctx context.Context, a actor.Actor, orderID uuid.UUID, body string, attachments []string) (dispute.Message, error)
}

// appendMessageRequest leaves the empty-message check to the service so the
// caller gets EmptyMessage rather than a validation error.
type appendMessageRequest struct {
	Message     string   `json:"message"     validate:"max=4000"`
	Attachments []string `json:"attachments" validate:"max=10"`
}

// AppendMessage posts into the dispute in the URL.
func AppendMessage(w http.ResponseWriter, r *http.Request, service service) {
	appendTo(w, r, service.AppendMessage)
}

// AppendMessageToOrder posts into the active dispute of the order in the URL.
func AppendMessageToOrder(w http.ResponseWriter, r *http.Request, service service) {
	appendTo(w, r, service.AppendMessageToOrder)
}

func appendTo(
	w http.ResponseWriter,
	r *http.Request,
	post func(ctx context.Context, a actor.Actor, id uuid.UUID, body string, attachments []string) (dispute.Message, error),
) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	id, err := httpio.UUIDParam(r, "id")
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	req := appendMessageRequest{}
	if err := httpio.Decode(r, &req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	msg, err := post(r.Context(), a, id, req.Message, req.Attachments)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusCreated, msg)
}
