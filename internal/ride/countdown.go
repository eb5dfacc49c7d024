package ride

import (
	"fmt"
	"time"
)

type CountdownState string

const (
	CountdownCounting CountdownState = "counting"
	CountdownExpired  CountdownState = "expired"
	CountdownError    CountdownState = "error"
)

// Countdown is the lifecycle annotation for a "ride now" request.
type Countdown struct {
	State     CountdownState `json:"state"`
	Remaining string         `json:"remaining,omitempty"`
}

// CountdownAt reports where a now-ride stands relative to its 30-minute
// window. Remaining is rendered MM:SS.
func CountdownAt(start, now time.Time) Countdown {
	if start.IsZero() {
		return Countdown{State: CountdownError}
	}
	expiry := start.Add(NowRideWindow)
	if !now.Before(expiry) {
		return Countdown{State: CountdownExpired}
	}
	left := expiry.Sub(now).Round(time.Second)
	mins := int(left / time.Minute)
	secs := int(left%time.Minute) / int(time.Second)
	return Countdown{
		State:     CountdownCounting,
		Remaining: fmt.Sprintf("%02d:%02d", mins, secs),
	}
}
