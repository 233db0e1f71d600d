// Package notifications serves the notification inbox of the caller.
package notifications

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/notification"
	"github.com/corray333/backend-labs/marketplace/internal/transport/http/httpio"
	"github.com/google/uuid"
)

type service interface {
	List(ctx context.Context, a actor.Actor, limit int) (notification.Page, error)
	UnreadCount(ctx context.Context, a actor.Actor) (int, error)
	MarkRead(ctx context.Context, a actor.Actor, id uuid.UUID) (notification.Notification, error)
	MarkAllRead(ctx context.Context, a actor.Actor) (int64, error)
}

type listRequest struct {
	Limit int `schema:"limit,omitempty"`
}

type unreadCountResponse struct {
	Unread int `json:"unread"`
}

type markAllReadResponse struct {
	Updated     int64 `json:"updated"`
	UnreadCount int   `json:"unreadCount"`
}

// List returns the newest notifications and the unread count.
func List(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	req := &listRequest{}
	if err := httpio.DecodeQuery(r, req); err != nil {
		httpio.Error(w, r, err)

		return
	}

	page, err := service.List(r.Context(), a, req.Limit)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, page)
}

func UnreadCount(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	unread, err := service.UnreadCount(r.Context(), a)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, unreadCountResponse{Unread: unread})
}

// MarkRead succeeds for already read notifications too.
func MarkRead(w http.ResponseWriter, r *http.Request, service service) {
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

	n, err := service.MarkRead(r.Context(), a, id)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, n)
}

// MarkAllRead responds with how many records changed and the unread count
// after the update, which is zero unless new notifications raced in.
func MarkAllRead(w http.ResponseWriter, r *http.Request, service service) {
	a, err := httpio.Actor(r)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	updated, err := service.MarkAllRead(r.Context(), a)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	unread, err := service.UnreadCount(r.Context(), a)
	if err != nil {
		httpio.Error(w, r, err)

		return
	}

	httpio.JSON(w, http.StatusOK, markAllReadResponse{Updated: updated, UnreadCount: unread})
}
