package ride

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"backend-ridelink/internal/db"
	"backend-ridelink/internal/shared/apperr"
	"backend-ridelink/internal/shared/geo"
	"backend-ridelink/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const defaultsTTL = 30 * 24 * time.Hour

type Service struct {
	db  db.Querier
	kv  db.KV
	hub *stream.Hub
	now func() time.Time
}

func NewService(db db.Querier, kv db.KV, hub *stream.Hub) *Service {
	return &Service{db: db, kv: kv, hub: hub, now: time.Now}
}

const annotatedSelect = `
	SELECT r.id, r.created_by, r.start_time, r.end_time, r.preset, r.distance_km, r.bike_type,
	       r.status, COALESCE(r.address,''), COALESCE(r.coords,''), r.created_at, r.updated_at,
	       p.first_name, p.last_name, COALESCE(p.avatar_url,'')
	FROM rides r
	JOIN profiles p ON p.user_id = r.created_by
`

// Create inserts the ride with the caller as creator, status open, and the
// time window derived from the preset. The returned row is fully joined so
// the client never reconstructs it. The caller's form tuple is saved as the
// next-session defaults.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (Annotated, error) {
	if userID == "" {
		return Annotated{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	if !input.Preset.Valid() {
		return Annotated{}, apperr.New(apperr.CodeValidation, "preset required")
	}
	if input.DistanceKm <= 0 {
		return Annotated{}, apperr.New(apperr.CodeValidation, "distance_km required")
	}
	if !input.BikeType.Valid() {
		return Annotated{}, apperr.New(apperr.CodeValidation, "bike_type required")
	}
	if input.Address == "" && input.Coords == "" {
		return Annotated{}, apperr.New(apperr.CodeValidation, "starting point required")
	}
	if input.Coords != "" {
		if _, _, err := geo.ParseLatLng(input.Coords); err != nil {
			return Annotated{}, apperr.New(apperr.CodeValidation, err.Error())
		}
	}

	start, end, err := Window(input.Preset, s.now(), input.StartTime, input.EndTime)
	if err != nil {
		return Annotated{}, err
	}

	r := Ride{
		ID:         uuid.NewString(),
		CreatedBy:  userID,
		StartTime:  start,
		EndTime:    end,
		Preset:     input.Preset,
		DistanceKm: input.DistanceKm,
		BikeType:   input.BikeType,
		Status:     StatusOpen,
		Address:    input.Address,
		Coords:     input.Coords,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO rides (id, created_by, start_time, end_time, preset, distance_km, bike_type, status, address, coords)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at
	`, r.ID, r.CreatedBy, r.StartTime, r.EndTime, r.Preset, r.DistanceKm, r.BikeType, r.Status, r.Address, r.Coords)
	if err := row.Scan(&r.CreatedAt, &r.UpdatedAt); err != nil {
		return Annotated{}, err
	}

	s.saveDefaults(ctx, userID, input)
	s.publish(stream.ActionInsert, r)

	creator, err := s.creatorProfile(ctx, userID)
	if err != nil {
		return Annotated{}, err
	}
	return s.annotate(r, creator, nil, userID), nil
}

// Update patches a ride; only the creator may change it.
func (s *Service) Update(ctx context.Context, userID, id string, patch Ride) (Annotated, error) {
	r, err := s.fetch(ctx, id)
	if err != nil {
		return Annotated{}, err
	}
	if r.CreatedBy != userID {
		return Annotated{}, apperr.New(apperr.CodeUnauthorized, "only the creator can update a ride")
	}

	if !patch.StartTime.IsZero() {
		r.StartTime = patch.StartTime
	}
	if !patch.EndTime.IsZero() {
		r.EndTime = patch.EndTime
	}
	if patch.DistanceKm > 0 {
		r.DistanceKm = patch.DistanceKm
	}
	if patch.BikeType != "" {
		if !patch.BikeType.Valid() {
			return Annotated{}, apperr.New(apperr.CodeValidation, "unknown bike_type")
		}
		r.BikeType = patch.BikeType
	}
	if patch.Status != "" {
		switch patch.Status {
		case StatusOpen, StatusClosed, StatusCancelled:
			r.Status = patch.Status
		default:
			return Annotated{}, apperr.New(apperr.CodeValidation, "unknown status")
		}
	}
	if patch.Address != "" {
		r.Address = patch.Address
	}
	if patch.Coords != "" {
		if _, _, err := geo.ParseLatLng(patch.Coords); err != nil {
			return Annotated{}, apperr.New(apperr.CodeValidation, err.Error())
		}
		r.Coords = patch.Coords
	}

	_, err = s.db.Exec(ctx, `
		UPDATE rides
		SET start_time=$2, end_time=$3, distance_km=$4, bike_type=$5, status=$6, address=$7, coords=$8, updated_at=NOW()
		WHERE id=$1
	`, r.ID, r.StartTime, r.EndTime, r.DistanceKm, r.BikeType, r.Status, r.Address, r.Coords)
	if err != nil {
		return Annotated{}, err
	}

	s.publish(stream.ActionUpdate, r)

	creator, err := s.creatorProfile(ctx, r.CreatedBy)
	if err != nil {
		return Annotated{}, err
	}
	participants, err := s.loadParticipants(ctx, []string{r.ID})
	if err != nil {
		return Annotated{}, err
	}
	return s.annotate(r, creator, participants[r.ID], userID), nil
}

// Delete removes a ride and its participation rows; only the creator may.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	r, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if r.CreatedBy != userID {
		return apperr.New(apperr.CodeUnauthorized, "only the creator can delete a ride")
	}
	return s.remove(ctx, r)
}

func (s *Service) remove(ctx context.Context, r Ride) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM ride_participants WHERE ride_id=$1`, r.ID); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM rides WHERE id=$1`, r.ID); err != nil {
		return err
	}
	s.publish(stream.ActionDelete, r)
	return nil
}

// List returns all rides annotated for the viewer; viewerID may be empty.
func (s *Service) List(ctx context.Context, viewerID string) ([]Annotated, error) {
	return s.list(ctx, viewerID, annotatedSelect+`ORDER BY r.start_time`)
}

// Mine returns the viewer's own rides.
func (s *Service) Mine(ctx context.Context, userID string) ([]Annotated, error) {
	return s.list(ctx, userID, annotatedSelect+`WHERE r.created_by=$1 ORDER BY r.start_time`, userID)
}

// Joined returns rides the viewer participates in.
func (s *Service) Joined(ctx context.Context, userID string) ([]Annotated, error) {
	return s.list(ctx, userID, annotatedSelect+`
		WHERE EXISTS (SELECT 1 FROM ride_participants rp WHERE rp.ride_id = r.id AND rp.user_id = $1)
		ORDER BY r.start_time`, userID)
}

// Near filters the listing to rides whose coordinates fall within radiusKm.
// Rides without coordinates, or with unparseable ones, are skipped; parse
// failures are logged rather than swallowed.
func (s *Service) Near(ctx context.Context, viewerID string, lat, lng, radiusKm float64) ([]Annotated, error) {
	all, err := s.List(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	var nearby []Annotated
	for _, r := range all {
		if r.Coords == "" {
			continue
		}
		rideLat, rideLng, err := geo.ParseLatLng(r.Coords)
		if err != nil {
			log.Printf("ride %s: %v", r.ID, err)
			continue
		}
		if geo.HaversineKm(lat, lng, rideLat, rideLng) <= radiusKm {
			nearby = append(nearby, r)
		}
	}
	return nearby, nil
}

// Get returns one ride annotated for the viewer.
func (s *Service) Get(ctx context.Context, viewerID, id string) (Annotated, error) {
	rides, err := s.list(ctx, viewerID, annotatedSelect+`WHERE r.id=$1`, id)
	if err != nil {
		return Annotated{}, err
	}
	if len(rides) == 0 {
		return Annotated{}, apperr.New(apperr.CodeNotFound, "ride not found")
	}
	return rides[0], nil
}

// Defaults returns the caller's last-used creation tuple, zero-valued when
// none was saved yet.
func (s *Service) Defaults(ctx context.Context, userID string) (CreationDefaults, error) {
	if s.kv == nil {
		return CreationDefaults{}, nil
	}
	raw, err := s.kv.Get(ctx, defaultsKey(userID))
	if err != nil || raw == "" {
		return CreationDefaults{}, err
	}
	var defaults CreationDefaults
	if err := json.Unmarshal([]byte(raw), &defaults); err != nil {
		return CreationDefaults{}, nil
	}
	return defaults, nil
}

func (s *Service) saveDefaults(ctx context.Context, userID string, input CreateInput) {
	if s.kv == nil {
		return
	}
	startPoint := input.Address
	if startPoint == "" {
		startPoint = input.Coords
	}
	raw, err := json.Marshal(CreationDefaults{
		Preset:     input.Preset,
		DistanceKm: input.DistanceKm,
		BikeType:   input.BikeType,
		StartPoint: startPoint,
	})
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, defaultsKey(userID), string(raw), defaultsTTL); err != nil {
		log.Printf("save ride defaults: %v", err)
	}
}

func (s *Service) list(ctx context.Context, viewerID, query string, args ...any) ([]Annotated, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []Annotated
	var ids []string
	for rows.Next() {
		var r Ride
		var creator Creator
		if err := rows.Scan(&r.ID, &r.CreatedBy, &r.StartTime, &r.EndTime, &r.Preset, &r.DistanceKm,
			&r.BikeType, &r.Status, &r.Address, &r.Coords, &r.CreatedAt, &r.UpdatedAt,
			&creator.FirstName, &creator.LastName, &creator.AvatarURL); err != nil {
			return nil, err
		}
		creator.UserID = r.CreatedBy
		ids = append(ids, r.ID)
		rides = append(rides, s.annotate(r, creator, nil, viewerID))
	}

	participants, err := s.loadParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range rides {
		members := participants[rides[i].ID]
		rides[i].Participants = members
		rides[i].ParticipantCount = len(members)
		rides[i].IsParticipant = hasMember(members, viewerID)
	}
	return rides, nil
}

func (s *Service) loadParticipants(ctx context.Context, rideIDs []string) (map[string][]Participant, error) {
	if len(rideIDs) == 0 {
		return map[string][]Participant{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT ride_id, user_id, joined_at
		FROM ride_participants WHERE ride_id = ANY($1)
		ORDER BY joined_at
	`, rideIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := map[string][]Participant{}
	for rows.Next() {
		var rideID string
		var p Participant
		if err := rows.Scan(&rideID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants[rideID] = append(participants[rideID], p)
	}
	return participants, nil
}

func (s *Service) fetch(ctx context.Context, id string) (Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, created_by, start_time, end_time, preset, distance_km, bike_type, status,
		       COALESCE(address,''), COALESCE(coords,''), created_at, updated_at
		FROM rides WHERE id=$1
	`, id)
	var r Ride
	err := row.Scan(&r.ID, &r.CreatedBy, &r.StartTime, &r.EndTime, &r.Preset, &r.DistanceKm,
		&r.BikeType, &r.Status, &r.Address, &r.Coords, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ride{}, apperr.New(apperr.CodeNotFound, "ride not found")
	}
	if err != nil {
		return Ride{}, err
	}
	return r, nil
}

func (s *Service) creatorProfile(ctx context.Context, userID string) (Creator, error) {
	row := s.db.QueryRow(ctx, `
		SELECT first_name, last_name, COALESCE(avatar_url,'')
		FROM profiles WHERE user_id=$1
	`, userID)
	creator := Creator{UserID: userID}
	if err := row.Scan(&creator.FirstName, &creator.LastName, &creator.AvatarURL); err != nil {
		return Creator{}, err
	}
	return creator, nil
}

func (s *Service) annotate(r Ride, creator Creator, members []Participant, viewerID string) Annotated {
	a := Annotated{
		Ride:             r,
		Creator:          creator,
		Participants:     members,
		ParticipantCount: len(members),
		IsCreator:        viewerID != "" && viewerID == r.CreatedBy,
		IsParticipant:    hasMember(members, viewerID),
	}
	if r.Preset == PresetNow {
		cd := CountdownAt(r.StartTime, s.now())
		a.Countdown = &cd
	}
	return a
}

func (s *Service) publish(action string, r Ride) {
	if s.hub != nil {
		s.hub.Publish(stream.Event{Table: "rides", Action: action, ID: r.ID, Row: r})
	}
}

func hasMember(members []Participant, userID string) bool {
	if userID == "" {
		return false
	}
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func defaultsKey(userID string) string {
	return "ride:defaults:" + userID
}
