package disputesvc

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/corray333/backend-labs/marketplace/internal/dal/uow"
	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/idempotency"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/google/uuid"
)

const previewRunes = 140

// OpenDispute opens a dispute on the buyer's order. The order row is locked
// while the check for an existing unresolved dispute and the insert run.
func (s *DisputeService) OpenDispute(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
	op dispute.Opening,
	idempotencyKey string,
) (dispute.Dispute, error) {
	ctx, span := tracer.Start(ctx, "DisputeService.OpenDispute")
	defer span.End()

	return idempotency.Do(ctx, s.idem, "dispute:"+a.ID, idempotencyKey,
		func(d dispute.Dispute) uuid.UUID { return d.ID },
		func(ctx context.Context, id uuid.UUID) (dispute.Dispute, error) {
			return s.newUOW().DisputeRepository().Get(ctx, id)
		},
		func(ctx context.Context) (dispute.Dispute, error) {
			return s.openDispute(ctx, a, orderID, op)
		},
	)
}

func (s *DisputeService) openDispute(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
	op dispute.Opening,
) (dispute.Dispute, error) {
	if err := s.verify(ctx, op.Attachments); err != nil {
		return dispute.Dispute{}, err
	}

	var opened dispute.Dispute

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		o, err := getOrder(ctx, work, orderID, true)
		if err != nil {
			return err
		}

		active, err := work.DisputeRepository().ActiveForOrder(ctx, orderID)
		if err != nil {
			return err
		}

		d, err := dispute.Open(a, o, op, active, uuid.New(), s.now())
		if err != nil {
			return err
		}

		if err := work.DisputeRepository().Insert(ctx, d); err != nil {
			return err
		}

		opened = d

		return s.enqueue(ctx, work, a, event.DisputeOpened, d.ID, event.DisputeOpenedPayload{
			DisputeRef: disputeRef(d, o),
			Reason:     d.Reason,
		})
	})
	if err != nil {
		return dispute.Dispute{}, fmt.Errorf("failed to open dispute: %w", err)
	}

	metrics.DisputesOpened.Inc()
	slog.Info("Dispute opened", "dispute_id", opened.ID, "order_id", orderID, "buyer_id", a.ID)

	return opened, nil
}

// AppendMessage adds a message to the dispute thread. Participants are the
// buyer, the sellers following the dispute and admins.
func (s *DisputeService) AppendMessage(
	ctx context.Context,
	a actor.Actor,
	disputeID uuid.UUID,
	body string,
	attachments []string,
) (dispute.Message, error) {
	ctx, span := tracer.Start(ctx, "DisputeService.AppendMessage")
	defer span.End()

	if err := s.verify(ctx, attachments); err != nil {
		return dispute.Message{}, err
	}

	var msg dispute.Message

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		d, err := work.DisputeRepository().GetForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}

		o, err := getOrder(ctx, work, d.OrderID, false)
		if err != nil {
			return err
		}

		if !d.CanParticipate(a, o) {
			return fmt.Errorf("%w: not a participant of dispute %s", errs.ErrForbidden, d.ID)
		}

		msg, err = d.AppendMessage(a, body, attachments, s.now())
		if err != nil {
			return err
		}

		if err := work.DisputeRepository().InsertMessage(ctx, msg); err != nil {
			return err
		}

		if err := work.DisputeRepository().Touch(ctx, d.ID, d.UpdatedAt); err != nil {
			return err
		}

		return s.enqueue(ctx, work, a, event.DisputeMessageAdded, d.ID, event.DisputeMessageAddedPayload{
			DisputeRef: disputeRef(d, o),
			MessageID:  msg.ID,
			SenderID:   a.ID,
			SenderRole: a.Role.String(),
			Preview:    preview(msg),
		})
	})
	if err != nil {
		return dispute.Message{}, fmt.Errorf("failed to append dispute message: %w", err)
	}

	slog.Info("Dispute message added", "dispute_id", disputeID, "sender_id", a.ID, "sender_role", a.Role)

	return msg, nil
}

// AppendMessageToOrder posts into the order's unresolved dispute. When the
// order only has resolved disputes the thread is closed. Callers outside the
// order are refused before any dispute is looked up.
func (s *DisputeService) AppendMessageToOrder(
	ctx context.Context,
	a actor.Actor,
	orderID uuid.UUID,
	body string,
	attachments []string,
) (dispute.Message, error) {
	ctx, span := tracer.Start(ctx, "DisputeService.AppendMessageToOrder")
	defer span.End()

	work := s.newUOW()

	o, err := getOrder(ctx, work, orderID, false)
	if err != nil {
		return dispute.Message{}, err
	}
	if !o.CanView(a) {
		return dispute.Message{}, fmt.Errorf("%w: not a party to order %s", errs.ErrForbidden, orderID)
	}

	active, err := work.DisputeRepository().ActiveForOrder(ctx, orderID)
	if err != nil {
		return dispute.Message{}, err
	}
	if active != nil {
		return s.AppendMessage(ctx, a, active.ID, body, attachments)
	}

	latest, err := work.DisputeRepository().Query(ctx, &dispute.QueryDisputesModel{
		OrderIds: []uuid.UUID{orderID},
		Limit:    1,
	})
	if err != nil {
		return dispute.Message{}, err
	}
	if len(latest) == 0 {
		return dispute.Message{}, fmt.Errorf("dispute for order %s: %w", orderID, errs.ErrNotFound)
	}

	// the resolved dispute decides between closed and forbidden
	return s.AppendMessage(ctx, a, latest[0].ID, body, attachments)
}

// TransitionDispute applies an admin disposition. The optional message to the
// buyer and the status change commit together.
func (s *DisputeService) TransitionDispute(
	ctx context.Context,
	admin actor.Actor,
	disputeID uuid.UUID,
	r dispute.Resolution,
) (dispute.Dispute, error) {
	ctx, span := tracer.Start(ctx, "DisputeService.TransitionDispute")
	defer span.End()

	var updated dispute.Dispute

	work := s.newUOW()
	err := uow.Run(ctx, work, func(ctx context.Context) error {
		d, err := work.DisputeRepository().GetForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}

		from, msg, err := d.Transition(admin, r, s.now())
		if err != nil {
			return err
		}

		if msg != nil {
			if err := work.DisputeRepository().InsertMessage(ctx, *msg); err != nil {
				return err
			}
		}

		if err := work.DisputeRepository().UpdateStatus(ctx, d, from); err != nil {
			return err
		}

		o, err := getOrder(ctx, work, d.OrderID, false)
		if err != nil {
			return err
		}

		updated = d

		payload := event.DisputeStatusChangedPayload{
			DisputeRef: disputeRef(d, o),
			From:       from.String(),
			To:         d.Status.String(),
			Resolution: d.Resolution,
		}
		if msg != nil {
			payload.MessageID = &msg.ID
			payload.MessagePreview = preview(*msg)
		}

		return s.enqueue(ctx, work, admin, event.DisputeStatusChanged, d.ID, payload)
	})
	if err != nil {
		return dispute.Dispute{}, fmt.Errorf("failed to transition dispute: %w", err)
	}

	metrics.DisputeTransitions.WithLabelValues(updated.Status.String()).Inc()
	slog.Info("Dispute status changed", "dispute_id", disputeID, "to", updated.Status, "admin_id", admin.ID)

	return updated, nil
}

func preview(msg dispute.Message) string {
	if msg.Body == nil {
		return fmt.Sprintf("%d attachment(s)", len(msg.Attachments))
	}

	body := *msg.Body
	if utf8.RuneCountInString(body) <= previewRunes {
		return body
	}

	return string([]rune(body)[:previewRunes]) + "…"
}
