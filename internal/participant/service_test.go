package participant

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-ridelink/internal/shared/apperr"
	"backend-ridelink/internal/stream"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var errQuery = errors.New("query failed")

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func rideStateCols() []string {
	return []string{"created_by", "status", "start_time"}
}

func expectRideState(mock pgxmock.PgxPoolIface, rideID, createdBy, status string, start time.Time) {
	mock.ExpectQuery(`SELECT created_by, status, start_time`).
		WithArgs(rideID).
		WillReturnRows(pgxmock.NewRows(rideStateCols()).AddRow(createdBy, status, start))
}

func TestJoin(t *testing.T) {
	mock := newMock(t)
	hub := stream.NewHub(nil)
	sub := hub.Subscribe("ride_participants:ride-1")
	defer hub.Unsubscribe(sub)

	expectRideState(mock, "ride-1", "user-1", "open", time.Now().Add(time.Hour))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ride-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO ride_participants`).
		WithArgs("ride-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"joined_at"}).AddRow(time.Now()))
	mock.ExpectQuery(`SELECT first_name, last_name`).
		WithArgs("user-2").
		WillReturnRows(pgxmock.NewRows([]string{"first_name", "last_name", "avatar_url"}).
			AddRow("Sam", "Spinner", ""))

	svc := NewService(mock, hub)
	member, err := svc.Join(context.Background(), "user-2", "ride-1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if member.UserID != "user-2" || member.FirstName != "Sam" || member.JoinedAt.IsZero() {
		t.Fatalf("unexpected member: %+v", member)
	}

	select {
	case <-sub.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected insert event on the ride topic")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJoinRideNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT created_by, status, start_time`).
		WithArgs("ride-404").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService(mock, nil)
	_, err := svc.Join(context.Background(), "user-2", "ride-404")
	if apperr.Classify(err).Code != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestJoinClosedRide(t *testing.T) {
	mock := newMock(t)
	expectRideState(mock, "ride-1", "user-1", "closed", time.Now().Add(time.Hour))

	svc := NewService(mock, nil)
	_, err := svc.Join(context.Background(), "user-2", "ride-1")
	if apperr.Classify(err).Code != apperr.CodeRideExpired {
		t.Fatalf("expected RIDE_EXPIRED, got %v", err)
	}
}

func TestJoinStartedRide(t *testing.T) {
	mock := newMock(t)
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	expectRideState(mock, "ride-1", "user-1", "open", start)

	svc := NewService(mock, nil)
	svc.now = func() time.Time { return start } // the start instant itself is too late

	_, err := svc.Join(context.Background(), "user-2", "ride-1")
	if apperr.Classify(err).Code != apperr.CodeRideExpired {
		t.Fatalf("expected RIDE_EXPIRED, got %v", err)
	}
}

func TestJoinOwnRide(t *testing.T) {
	mock := newMock(t)
	expectRideState(mock, "ride-1", "user-1", "open", time.Now().Add(time.Hour))

	svc := NewService(mock, nil)
	_, err := svc.Join(context.Background(), "user-1", "ride-1")
	if apperr.Classify(err).Code != apperr.CodeAlreadyParticipant {
		t.Fatalf("expected ALREADY_PARTICIPANT, got %v", err)
	}
}

func TestJoinTwice(t *testing.T) {
	mock := newMock(t)
	expectRideState(mock, "ride-1", "user-1", "open", time.Now().Add(time.Hour))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ride-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	svc := NewService(mock, nil)
	_, err := svc.Join(context.Background(), "user-2", "ride-1")
	if apperr.Classify(err).Code != apperr.CodeAlreadyParticipant {
		t.Fatalf("expected ALREADY_PARTICIPANT, got %v", err)
	}
}

func TestJoinThenLeave(t *testing.T) {
	mock := newMock(t)
	hub := stream.NewHub(nil)
	sub := hub.Subscribe("ride_participants:ride-1")
	defer hub.Unsubscribe(sub)
	start := time.Now().Add(time.Hour)

	expectRideState(mock, "ride-1", "user-1", "open", start)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ride-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO ride_participants`).
		WithArgs("ride-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"joined_at"}).AddRow(time.Now()))
	mock.ExpectQuery(`SELECT first_name, last_name`).
		WithArgs("user-2").
		WillReturnRows(pgxmock.NewRows([]string{"first_name", "last_name", "avatar_url"}).
			AddRow("Sam", "Spinner", ""))

	expectRideState(mock, "ride-1", "user-1", "open", start)
	mock.ExpectExec(`DELETE FROM ride_participants`).
		WithArgs("ride-1", "user-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ride-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	svc := NewService(mock, hub)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "user-2", "ride-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := svc.Leave(ctx, "user-2", "ride-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	joined, err := svc.IsParticipant(ctx, "ride-1", "user-2")
	if err != nil || joined {
		t.Fatalf("expected membership gone after leave: %v %v", joined, err)
	}

	for i := 0; i < 2; i++ { // one insert, one delete
		select {
		case <-sub.Send:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("expected event %d", i)
		}
	}
}

func TestLeaveOwnRide(t *testing.T) {
	mock := newMock(t)
	expectRideState(mock, "ride-1", "user-1", "open", time.Now().Add(time.Hour))

	svc := NewService(mock, nil)
	err := svc.Leave(context.Background(), "user-1", "ride-1")
	if apperr.Classify(err).Code != apperr.CodeCannotLeaveOwnRide {
		t.Fatalf("expected CANNOT_LEAVE_OWN_RIDE, got %v", err)
	}
}

func TestLeaveNotParticipant(t *testing.T) {
	mock := newMock(t)
	expectRideState(mock, "ride-1", "user-1", "open", time.Now().Add(time.Hour))
	mock.ExpectExec(`DELETE FROM ride_participants`).
		WithArgs("ride-1", "user-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	svc := NewService(mock, nil)
	err := svc.Leave(context.Background(), "user-2", "ride-1")
	if apperr.Classify(err).Code != apperr.CodeNotParticipant {
		t.Fatalf("expected NOT_PARTICIPANT, got %v", err)
	}
}

func TestListParticipants(t *testing.T) {
	mock := newMock(t)
	first := time.Now().Add(-2 * time.Hour)
	second := time.Now().Add(-time.Hour)

	mock.ExpectQuery(`SELECT rp.user_id, p.first_name`).
		WithArgs("ride-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "first_name", "last_name", "avatar_url", "joined_at"}).
			AddRow("user-2", "Sam", "Spinner", "", first).
			AddRow("user-3", "Ada", "Allroad", "https://cdn/a.png", second))

	svc := NewService(mock, nil)
	members, err := svc.List(context.Background(), "ride-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 2 || members[0].UserID != "user-2" || members[1].AvatarURL == "" {
		t.Fatalf("unexpected members: %+v", members)
	}
}

func TestRideIDs(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT ride_id FROM ride_participants`).
		WithArgs("user-2").
		WillReturnRows(pgxmock.NewRows([]string{"ride_id"}).AddRow("ride-1").AddRow("ride-7"))

	svc := NewService(mock, nil)
	ids, err := svc.RideIDs(context.Background(), "user-2")
	if err != nil || len(ids) != 2 || ids[1] != "ride-7" {
		t.Fatalf("unexpected ids: %v %v", ids, err)
	}
}

func TestCountQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("ride-1").
		WillReturnError(errQuery)

	svc := NewService(mock, nil)
	if _, err := svc.Count(context.Background(), "ride-1"); err == nil {
		t.Fatalf("expected error")
	}
}
