package participant

import (
	"context"
	"errors"
	"time"

	"backend-ridelink/internal/db"
	"backend-ridelink/internal/shared/apperr"
	"backend-ridelink/internal/stream"

	"github.com/jackc/pgx/v5"
)

type Service struct {
	db  db.Querier
	hub *stream.Hub
	now func() time.Time
}

func NewService(db db.Querier, hub *stream.Hub) *Service {
	return &Service{db: db, hub: hub, now: time.Now}
}

// Join adds the caller to a ride. Preconditions run in a fixed order so the
// caller always gets the most specific error: missing ride, closed ride, a
// start time already passed, joining one's own ride, then a duplicate join.
// The creator case reports ALREADY_PARTICIPANT since the creator is implicitly
// on their own ride.
func (s *Service) Join(ctx context.Context, userID, rideID string) (Member, error) {
	createdBy, status, start, err := s.rideState(ctx, rideID)
	if err != nil {
		return Member{}, err
	}
	if status != "open" {
		return Member{}, apperr.New(apperr.CodeRideExpired, "ride is no longer open")
	}
	if !s.now().Before(start) {
		return Member{}, apperr.New(apperr.CodeRideExpired, "ride has already started")
	}
	if createdBy == userID {
		return Member{}, apperr.New(apperr.CodeAlreadyParticipant, "you created this ride")
	}

	joined, err := s.IsParticipant(ctx, rideID, userID)
	if err != nil {
		return Member{}, err
	}
	if joined {
		return Member{}, apperr.New(apperr.CodeAlreadyParticipant, "already joined this ride")
	}

	member := Member{UserID: userID}
	row := s.db.QueryRow(ctx, `
		INSERT INTO ride_participants (ride_id, user_id) VALUES ($1, $2)
		RETURNING joined_at
	`, rideID, userID)
	if err := row.Scan(&member.JoinedAt); err != nil {
		return Member{}, err
	}

	row = s.db.QueryRow(ctx, `
		SELECT first_name, last_name, COALESCE(avatar_url,'')
		FROM profiles WHERE user_id=$1
	`, userID)
	if err := row.Scan(&member.FirstName, &member.LastName, &member.AvatarURL); err != nil {
		return Member{}, err
	}

	s.publish(stream.ActionInsert, rideID, member)
	return member, nil
}

// Leave removes the caller from a ride. The creator cannot leave; they delete
// the ride instead.
func (s *Service) Leave(ctx context.Context, userID, rideID string) error {
	createdBy, _, _, err := s.rideState(ctx, rideID)
	if err != nil {
		return err
	}
	if createdBy == userID {
		return apperr.New(apperr.CodeCannotLeaveOwnRide, "the creator cannot leave their own ride")
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM ride_participants WHERE ride_id=$1 AND user_id=$2
	`, rideID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotParticipant, "not a participant of this ride")
	}

	s.publish(stream.ActionDelete, rideID, Member{UserID: userID})
	return nil
}

// List returns a ride's participants with profile data, oldest joins first.
func (s *Service) List(ctx context.Context, rideID string) ([]Member, error) {
	rows, err := s.db.Query(ctx, `
		SELECT rp.user_id, p.first_name, p.last_name, COALESCE(p.avatar_url,''), rp.joined_at
		FROM ride_participants rp
		JOIN profiles p ON p.user_id = rp.user_id
		WHERE rp.ride_id=$1
		ORDER BY rp.joined_at
	`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.FirstName, &m.LastName, &m.AvatarURL, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// RideIDs returns the ids of every ride the user has joined.
func (s *Service) RideIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ride_id FROM ride_participants WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) IsParticipant(ctx context.Context, rideID, userID string) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ride_participants WHERE ride_id=$1 AND user_id=$2)
	`, rideID, userID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Service) Count(ctx context.Context, rideID string) (int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM ride_participants WHERE ride_id=$1
	`, rideID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Service) rideState(ctx context.Context, rideID string) (createdBy, status string, start time.Time, err error) {
	row := s.db.QueryRow(ctx, `
		SELECT created_by, status, start_time FROM rides WHERE id=$1
	`, rideID)
	err = row.Scan(&createdBy, &status, &start)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", time.Time{}, apperr.New(apperr.CodeNotFound, "ride not found")
	}
	return createdBy, status, start, err
}

func (s *Service) publish(action, rideID string, member Member) {
	if s.hub != nil {
		s.hub.Publish(stream.Event{Table: "ride_participants", Action: action, ID: rideID, Row: member})
	}
}
