package notificationsvc

import (
	"fmt"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/dispute"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/notification"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// template is the content shared by every recipient of one event.
type template struct {
	Type     notification.Type
	Severity notification.Severity
	Icon     string
	Title    string
	Body     string
	Link     string

	// BodyFor replaces Body for individual recipients.
	BodyFor map[string]string
}

// Compose turns a domain event into one notification per recipient. The
// acting user is never notified about their own action.
func Compose(e event.Event, adminIDs []string, now time.Time) ([]notification.Notification, error) {
	recipients, tpl, err := route(e, adminIDs)
	if err != nil {
		return nil, err
	}

	recipients = lo.Without(lo.Uniq(lo.Compact(recipients)), e.ActorID)

	result := make([]notification.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		n := notification.Notification{
			ID:          uuid.New(),
			EventID:     e.ID,
			RecipientID: recipientID,
			Type:        tpl.Type,
			Severity:    tpl.Severity,
			Icon:        tpl.Icon,
			Title:       tpl.Title,
			Body:        tpl.Body,
			CreatedAt:   now,
		}
		if body, ok := tpl.BodyFor[recipientID]; ok {
			n.Body = body
		}
		if tpl.Link != "" {
			link := tpl.Link
			n.Link = &link
		}
		result = append(result, n)
	}

	return result, nil
}

func route(e event.Event, adminIDs []string) ([]string, template, error) {
	switch e.Type {
	case event.OrderPlaced:
		var p event.OrderPlacedPayload
		if err := e.Decode(&p); err != nil {
			return nil, template{}, err
		}

		return p.SellerIDs, template{
			Type:     notification.TypeOrderPlaced,
			Severity: notification.SeverityInfo,
			Icon:     "shopping-bag",
			Title:    "New order",
			Body:     fmt.Sprintf("Order %s was placed with %d item(s).", shortID(p.OrderID), p.ItemCount),
			Link:     orderLink(p.OrderID),
		}, nil

	case event.OrderStatusChanged:
		var p event.OrderStatusChangedPayload
		if err := e.Decode(&p); err != nil {
			return nil, template{}, err
		}

		return append([]string{p.BuyerID}, p.SellerIDs...), template{
			Type:     notification.TypeOrderStatus,
			Severity: statusSeverity(p.To),
			Icon:     "package",
			Title:    "Order " + p.To,
			Body:     fmt.Sprintf("Order %s moved from %s to %s.", shortID(p.OrderID), p.From, p.To),
			Link:     orderLink(p.OrderID),
		}, nil

	case event.OrderPaymentSubmitted:
		var p event.OrderPaymentSubmittedPayload
		if err := e.Decode(&p); err != nil {
			return nil, template{}, err
		}

		return adminIDs, template{
			Type:     notification.TypePaymentSubmitted,
			Severity: notification.SeverityWarning,
			Icon:     "credit-card",
			Title:    "Payment awaiting verification",
			Body:     fmt.Sprintf("Order %s: %s reference %s.", shortID(p.OrderID), p.PaymentMethod, p.Reference),
			Link:     orderLink(p.OrderID),
		}, nil

	case event.OrderItemShippingChanged:
		var p event.OrderItemShippingChangedPayload
		if err := e.Decode(&p); err != nil {
			return nil, template{}, err
		}

		body := fmt.Sprintf("%s is %s.", itemName(p), p.To)
		if p.AllItemsShipped {
			body += " All items of the order are on their way."
		}

		return []string{p.BuyerID}, template{
			Type:     notification.TypeItemShipping,
			Severity: notification.SeverityInfo,
			Icon:     "truck",
			Title:    "Shipping update",
			Body:     body,
			Link:     orderLink(p.OrderID),
		}, nil

	case event.DisputeOpened:
		var p event.DisputeOpenedPayload
		if err := e.Decode(&p); err != nil {
			return nil, template{}, err
		}

		return append(append([]string{}, adminIDs...), p.SellerIDs...), template{
			Type:     notification.TypeDisputeOpened,
			Severity: notification.SeverityWarning,
			Icon:     "alert-triangle",
			Title:    "Dispute opened",
			Body:     fmt.Sprintf("Order %s: %s", shortID(p.OrderID), p.Reason),
			Link:     disputeLink(p.DisputeID),
		}, nil

	case event.DisputeMessageAdded:
		var p event.DisputeMessageAddedPayload
		if err := e.Decode(&p); err != nil {
			return nil, template{}, err
		}

		recipients := append([]string{p.BuyerID}, p.SellerIDs...)
		if p.SenderRole == actor.RoleBuyer.String() {
			recipients = append(recipients, adminIDs...)
		}

		return recipients, template{
			Type:     notification.TypeDisputeMessage,
			Severity: notification.SeverityInfo,
			Icon:     "message-circle",
			Title:    "New dispute reply",
			Body:     p.Preview,
			Link:     disputeLink(p.DisputeID),
		}, nil

	case event.DisputeStatusChanged:
		var p event.DisputeStatusChangedPayload
		if err := e.Decode(&p); err != nil {
			return nil, template{}, err
		}

		body := fmt.Sprintf("Dispute on order %s is %s.", shortID(p.OrderID), p.To)
		if p.Resolution != nil && *p.Resolution != "" {
			body += " " + *p.Resolution
		}

		tpl := template{
			Type:     notification.TypeDisputeStatus,
			Severity: disputeSeverity(p.To),
			Icon:     "scale",
			Title:    "Dispute " + p.To,
			Body:     body,
			Link:     disputeLink(p.DisputeID),
		}
		if p.MessagePreview != "" {
			// the admin's note is addressed to the buyer only
			tpl.BodyFor = map[string]string{p.BuyerID: body + " Message from support: " + p.MessagePreview}
		}

		return append([]string{p.BuyerID}, p.SellerIDs...), tpl, nil

	default:
		return nil, template{}, fmt.Errorf("unknown event type %q", e.Type)
	}
}

func statusSeverity(status string) notification.Severity {
	switch order.Status(status) {
	case order.StatusCancelled:
		return notification.SeverityError
	case order.StatusPaid, order.StatusCompleted:
		return notification.SeveritySuccess
	default:
		return notification.SeverityInfo
	}
}

func disputeSeverity(status string) notification.Severity {
	switch dispute.Status(status) {
	case dispute.StatusRejected:
		return notification.SeverityError
	case dispute.StatusAccepted, dispute.StatusResolved:
		return notification.SeveritySuccess
	default:
		return notification.SeverityInfo
	}
}

func itemName(p event.OrderItemShippingChangedPayload) string {
	if p.Title != "" {
		return p.Title
	}

	return "Product " + p.ProductID
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func orderLink(id uuid.UUID) string {
	return "/orders/" + id.String()
}

func disputeLink(id uuid.UUID) string {
	return "/disputes/" + id.String()
}
