package settlement

import (
	"fmt"
	"sort"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/google/uuid"
)

// Bucket is the time granularity of a sales report.
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

// ToBucket parses s. An empty string means day.
func ToBucket(s string) (Bucket, error) {
	switch b := Bucket(s); b {
	case "":
		return BucketDay, nil
	case BucketDay, BucketWeek, BucketMonth:
		return b, nil
	default:
		return "", fmt.Errorf("%w: unknown report bucket %q", errs.ErrInvalidArgument, s)
	}
}

// Start returns the beginning of the bucket containing t, in loc. Weeks start
// on Monday.
func (b Bucket) Start(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)

	switch b {
	case BucketWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return day
	}
}

// ReportRow aggregates one seller's committed sales within one bucket.
type ReportRow struct {
	PeriodStart time.Time      `json:"periodStart"`
	SellerID    string         `json:"sellerId"`
	Currency    money.Currency `json:"currency"`
	Orders      int            `json:"orders"`
	Units       int            `json:"units"`
	Gross       money.Amount   `json:"grossCents"`
	Commission  money.Amount   `json:"commissionCents"`
	Net         money.Amount   `json:"netCents"`
}

// Report is a read-side view over orders. It holds no state of its own and
// is rebuilt from order rows on every request.
type Report struct {
	Bucket Bucket      `json:"bucket"`
	Rows   []ReportRow `json:"rows"`
}

type rowKey struct {
	period   int64
	sellerID string
	currency money.Currency
}

// BuildReport groups the items of committed orders by bucket, seller and
// currency. Pending and cancelled orders are skipped. Orders are bucketed by
// their creation time.
func BuildReport(orders []order.Order, bucket Bucket, loc *time.Location) Report {
	if loc == nil {
		loc = time.UTC
	}

	rows := make(map[rowKey]*ReportRow)
	seen := make(map[rowKey]map[uuid.UUID]struct{})

	for _, o := range orders {
		if !o.Status.IsCommitted() {
			continue
		}

		period := bucket.Start(o.CreatedAt, loc)
		for _, item := range o.OrderItems {
			key := rowKey{period: period.Unix(), sellerID: item.SellerID, currency: o.Currency}

			row, ok := rows[key]
			if !ok {
				row = &ReportRow{PeriodStart: period, SellerID: item.SellerID, Currency: o.Currency}
				rows[key] = row
				seen[key] = make(map[uuid.UUID]struct{})
			}

			if _, counted := seen[key][o.ID]; !counted {
				seen[key][o.ID] = struct{}{}
				row.Orders++
			}

			row.Units += item.Quantity
			row.Gross = row.Gross.Add(Gross(item))
			row.Commission = row.Commission.Add(Commission(item))
			row.Net = row.Net.Add(Net(item))
		}
	}

	out := Report{Bucket: bucket, Rows: make([]ReportRow, 0, len(rows))}
	for _, row := range rows {
		out.Rows = append(out.Rows, *row)
	}

	sort.Slice(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i], out.Rows[j]
		if !a.PeriodStart.Equal(b.PeriodStart) {
			return a.PeriodStart.Before(b.PeriodStart)
		}
		if a.SellerID != b.SellerID {
			return a.SellerID < b.SellerID
		}

		return a.Currency < b.Currency
	})

	return out
}

// OnlySeller drops every row not belonging to sellerID.
func (r Report) OnlySeller(sellerID string) Report {
	rows := make([]ReportRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		if row.SellerID == sellerID {
			rows = append(rows, row)
		}
	}

	return Report{Bucket: r.Bucket, Rows: rows}
}
