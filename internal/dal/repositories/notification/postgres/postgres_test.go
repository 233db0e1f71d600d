package postgresrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/corray333/backend-labs/marketplace/internal/dal/postgres/pgtest"
	postgresrepo "github.com/corray333/backend-labs/marketplace/internal/dal/repositories/notification/postgres"
	"github.com/corray333/backend-labs/marketplace/internal/service/errs"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/notification"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type NotificationRepositorySuite struct {
	suite.Suite

	ctx  context.Context
	db   *pgtest.Database
	repo *postgresrepo.PostgresNotificationRepository
}

func TestNotificationRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	suite.Run(t, new(NotificationRepositorySuite))
}

func (s *NotificationRepositorySuite) SetupSuite() {
	s.ctx = context.Background()

	db, err := pgtest.Start(s.ctx)
	s.Require().NoError(err)
	s.db = db
	s.repo = postgresrepo.NewPostgresNotificationRepository(db.Client.Pool())
}

func (s *NotificationRepositorySuite) TearDownSuite() {
	if s.db != nil {
		s.Require().NoError(s.db.Close(s.ctx))
	}
}

func (s *NotificationRepositorySuite) SetupTest() {
	s.Require().NoError(s.db.Truncate(s.ctx))
}

func fakeNotification(eventID uuid.UUID, recipientID string, minute int) notification.Notification {
	return notification.Notification{
		ID:          uuid.New(),
		EventID:     eventID,
		RecipientID: recipientID,
		Type:        notification.TypeOrderStatus,
		Severity:    notification.SeverityInfo,
		Icon:        "package",
		Title:       gofakeit.Sentence(3),
		Body:        gofakeit.Sentence(8),
		CreatedAt:   base.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(ns []notification.Notification) []uuid.UUID {
	out := make([]uuid.UUID, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func (s *NotificationRepositorySuite) TestInsertMany_IdempotentPerEventAndRecipient() {
	eventID := uuid.New()
	first := []notification.Notification{
		fakeNotification(eventID, "buyer-1", 0),
		fakeNotification(eventID, "seller-a", 0),
	}

	inserted, err := s.repo.InsertMany(s.ctx, first)
	s.Require().NoError(err)
	s.Len(inserted, 2)

	// the same event redelivered gets fresh ids but must not duplicate
	redelivered := []notification.Notification{
		fakeNotification(eventID, "buyer-1", 0),
		fakeNotification(eventID, "seller-a", 0),
		fakeNotification(eventID, "seller-b", 0),
	}

	inserted, err = s.repo.InsertMany(s.ctx, redelivered)
	s.Require().NoError(err)
	s.Require().Len(inserted, 1)
	s.Equal("seller-b", inserted[0].RecipientID)

	for _, recipient := range []string{"buyer-1", "seller-a", "seller-b"} {
		count, err := s.repo.UnreadCount(s.ctx, recipient)
		s.Require().NoError(err)
		s.Equal(1, count, recipient)
	}

	inserted, err = s.repo.InsertMany(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(inserted)
}

func (s *NotificationRepositorySuite) TestList() {
	var all []notification.Notification
	for i := range 5 {
		all = append(all, fakeNotification(uuid.New(), "buyer-1", i))
	}
	all = append(all, fakeNotification(uuid.New(), "buyer-2", 10))

	_, err := s.repo.InsertMany(s.ctx, all)
	s.Require().NoError(err)

	tests := []struct {
		name      string
		recipient string
		limit     int
		want      []uuid.UUID
	}{
		{
			name:      "newest first",
			recipient: "buyer-1",
			want:      []uuid.UUID{all[4].ID, all[3].ID, all[2].ID, all[1].ID, all[0].ID},
		},
		{
			name:      "limited",
			recipient: "buyer-1",
			limit:     2,
			want:      []uuid.UUID{all[4].ID, all[3].ID},
		},
		{
			name:      "only own",
			recipient: "buyer-2",
			want:      []uuid.UUID{all[5].ID},
		},
		{
			name:      "nobody",
			recipient: "ghost",
			want:      []uuid.UUID{},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			got, err := s.repo.List(s.ctx, tt.recipient, tt.limit)
			s.Require().NoError(err)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				s.Failf("list mismatch", "(-want +got):\n%s", diff)
			}
		})
	}
}

func (s *NotificationRepositorySuite) TestMarkRead() {
	n := fakeNotification(uuid.New(), "buyer-1", 0)
	_, err := s.repo.InsertMany(s.ctx, []notification.Notification{n})
	s.Require().NoError(err)

	tests := []struct {
		name      string
		recipient string
		id        uuid.UUID
		at        time.Time
		wantErr   error
	}{
		{name: "foreign recipient", recipient: "buyer-2", id: n.ID, at: base, wantErr: errs.ErrNotFound},
		{name: "unknown id", recipient: "buyer-1", id: uuid.New(), at: base, wantErr: errs.ErrNotFound},
		{name: "first read", recipient: "buyer-1", id: n.ID, at: base.Add(time.Hour)},
		{name: "second read keeps first timestamp", recipient: "buyer-1", id: n.ID, at: base.Add(2 * time.Hour)},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			got, err := s.repo.MarkRead(s.ctx, tt.recipient, tt.id, tt.at)
			if tt.wantErr != nil {
				s.Require().ErrorIs(err, tt.wantErr)
				return
			}
			s.Require().NoError(err)
			s.True(got.Read)
			s.Require().NotNil(got.ReadAt)
			s.True(got.ReadAt.Equal(base.Add(time.Hour)))
		})
	}

	count, err := s.repo.UnreadCount(s.ctx, "buyer-1")
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *NotificationRepositorySuite) TestMarkAllRead() {
	var ns []notification.Notification
	for i := range 3 {
		ns = append(ns, fakeNotification(uuid.New(), "buyer-1", i))
	}
	ns = append(ns, fakeNotification(uuid.New(), "buyer-2", 0))

	_, err := s.repo.InsertMany(s.ctx, ns)
	s.Require().NoError(err)

	_, err = s.repo.MarkRead(s.ctx, "buyer-1", ns[0].ID, base)
	s.Require().NoError(err)

	updated, err := s.repo.MarkAllRead(s.ctx, "buyer-1", base.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(2), updated)

	updated, err = s.repo.MarkAllRead(s.ctx, "buyer-1", base.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Zero(updated)

	count, err := s.repo.UnreadCount(s.ctx, "buyer-2")
	s.Require().NoError(err)
	s.Equal(1, count)
}
