package ride

import "time"

type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

type Preset string

const (
	PresetNow       Preset = "now"
	PresetLunch     Preset = "lunch"
	PresetAfternoon Preset = "afternoon"
	PresetCustom    Preset = "custom"
)

func (p Preset) Valid() bool {
	switch p {
	case PresetNow, PresetLunch, PresetAfternoon, PresetCustom:
		return true
	}
	return false
}

type BikeType string

const (
	BikeRoad   BikeType = "road"
	BikeMTB    BikeType = "mtb"
	BikeHybrid BikeType = "hybrid"
	BikeGravel BikeType = "gravel"
	BikeOther  BikeType = "other"
)

func (b BikeType) Valid() bool {
	switch b {
	case BikeRoad, BikeMTB, BikeHybrid, BikeGravel, BikeOther:
		return true
	}
	return false
}

type Ride struct {
	ID         string    `json:"id"`
	CreatedBy  string    `json:"created_by"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Preset     Preset    `json:"preset"`
	DistanceKm float64   `json:"distance_km"`
	BikeType   BikeType  `json:"bike_type"`
	Status     Status    `json:"status"`
	// Address and Coords describe the starting point; Coords keeps the
	// legacy "lat, lng" text format.
	Address   string    `json:"address,omitempty"`
	Coords    string    `json:"coords,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Creator is the slice of the profile embedded in ride listings.
type Creator struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Participant is the minimal membership row carried on annotated rides.
type Participant struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Annotated is a ride joined with its creator and participants, annotated
// relative to the viewing user.
type Annotated struct {
	Ride
	Creator          Creator       `json:"creator"`
	Participants     []Participant `json:"participants"`
	ParticipantCount int           `json:"participant_count"`
	IsCreator        bool          `json:"is_creator"`
	IsParticipant    bool          `json:"is_participant"`
	Countdown        *Countdown    `json:"countdown,omitempty"`
}

type CreateInput struct {
	Preset     Preset    `json:"preset"`
	DistanceKm float64   `json:"distance_km"`
	BikeType   BikeType  `json:"bike_type"`
	Address    string    `json:"address"`
	Coords     string    `json:"coords"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// CreationDefaults is the last-used form tuple saved per user for prefill.
type CreationDefaults struct {
	Preset     Preset   `json:"preset"`
	DistanceKm float64  `json:"distance_km"`
	BikeType   BikeType `json:"bike_type"`
	StartPoint string   `json:"start_point"`
}
