package profile

import (
	"context"
	"time"

	"backend-ridelink/internal/db"
	"backend-ridelink/internal/shared/apperr"
	"backend-ridelink/internal/stream"
)

const onboardedCacheTTL = 5 * time.Minute

type Service struct {
	db    db.Querier
	cache db.KV
	hub   *stream.Hub
}

func NewService(db db.Querier, cache db.KV, hub *stream.Hub) *Service {
	return &Service{db: db, cache: cache, hub: hub}
}

func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, first_name, last_name, COALESCE(avatar_url,''), COALESCE(social_url,''),
		       onboarding_completed, created_at, updated_at
		FROM profiles WHERE user_id=$1
	`, userID)
	var p Profile
	if err := row.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.AvatarURL, &p.SocialURL,
		&p.OnboardingCompleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, apperr.New(apperr.CodeUserNotFound, "profile not found")
	}
	return p, nil
}

// Update applies non-empty patch fields to the owner's profile.
func (s *Service) Update(ctx context.Context, userID string, patch Profile) (Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if patch.FirstName != "" {
		p.FirstName = patch.FirstName
	}
	if patch.LastName != "" {
		p.LastName = patch.LastName
	}
	if patch.AvatarURL != "" {
		p.AvatarURL = patch.AvatarURL
	}
	if patch.SocialURL != "" {
		p.SocialURL = patch.SocialURL
	}

	_, err = s.db.Exec(ctx, `
		UPDATE profiles
		SET first_name=$2, last_name=$3, avatar_url=$4, social_url=$5, updated_at=NOW()
		WHERE user_id=$1
	`, p.UserID, p.FirstName, p.LastName, p.AvatarURL, p.SocialURL)
	if err != nil {
		return Profile{}, err
	}

	s.invalidate(ctx, userID)
	s.publish(stream.ActionUpdate, p)
	return p, nil
}

// CompleteOnboarding flips the one-time flag gating the main application.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string) (Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE profiles SET onboarding_completed=true, updated_at=NOW() WHERE user_id=$1
	`, userID)
	if err != nil {
		return Profile{}, err
	}
	p.OnboardingCompleted = true

	s.invalidate(ctx, userID)
	s.publish(stream.ActionUpdate, p)
	return p, nil
}

// SetAvatarURL is called by the storage layer after an upload lands.
func (s *Service) SetAvatarURL(ctx context.Context, userID, url string) (Profile, error) {
	_, err := s.db.Exec(ctx, `
		UPDATE profiles SET avatar_url=$2, updated_at=NOW() WHERE user_id=$1
	`, userID, url)
	if err != nil {
		return Profile{}, err
	}
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	s.publish(stream.ActionUpdate, p)
	return p, nil
}

// List returns the team roster ordered by name.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, first_name, last_name, COALESCE(avatar_url,''), COALESCE(social_url,''),
		       onboarding_completed, created_at, updated_at
		FROM profiles
		ORDER BY first_name, last_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.AvatarURL, &p.SocialURL,
			&p.OnboardingCompleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Onboarded reports the gate flag, consulting the cache first.
func (s *Service) Onboarded(ctx context.Context, userID string) (bool, error) {
	if s.cache != nil {
		if val, err := s.cache.Get(ctx, onboardedKey(userID)); err == nil && val != "" {
			return val == "1", nil
		}
	}

	var done bool
	err := s.db.QueryRow(ctx, `
		SELECT onboarding_completed FROM profiles WHERE user_id=$1
	`, userID).Scan(&done)
	if err != nil {
		return false, err
	}

	if s.cache != nil {
		flag := "0"
		if done {
			flag = "1"
		}
		_ = s.cache.Set(ctx, onboardedKey(userID), flag, onboardedCacheTTL)
	}
	return done, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, onboardedKey(userID))
	}
}

func (s *Service) publish(action string, p Profile) {
	if s.hub != nil {
		s.hub.Publish(stream.Event{Table: "profiles", Action: action, ID: p.UserID, Row: p})
	}
}

func onboardedKey(userID string) string {
	return "profile:onboarded:" + userID
}
