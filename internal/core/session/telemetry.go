package session

import "time"

// Telemetry is a HUD snapshot. Durations are in seconds; last_lap and
// best_lap are zero until a lap has been validated.
type Telemetry struct {
	SessionID string `json:"session_id"`
	Track     string `json:"track"`
	Tick      uint64 `json:"tick"`
	Stage     string `json:"stage"`

	Position      [3]float64 `json:"position"`
	Yaw           float64    `json:"yaw"`
	SpeedKmh      float64    `json:"speed_kmh"`
	Gear          int        `json:"gear"`
	SteeringInput float64    `json:"steering_input"`

	CurrentLap     int     `json:"current_lap"`
	LapsTotal      int     `json:"laps_total"`
	NextCheckpoint int     `json:"next_checkpoint"`
	RaceElapsed    float64 `json:"race_elapsed"`
	LapElapsed     float64 `json:"lap_elapsed"`
	LastLap        float64 `json:"last_lap"`
	BestLap        float64 `json:"best_lap"`
	Finished       bool    `json:"finished"`
	Countdown      float64 `json:"countdown"`
}

func (s *Session) Telemetry() Telemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, p := s.vehicle, s.progress
	t := Telemetry{
		SessionID: s.id.String(),
		Track:     s.track.Name(),
		Tick:      s.ticks,
		Stage:     p.Stage().String(),

		Position:      [3]float64{v.Position.X, v.Position.Y, v.Position.Z},
		Yaw:           v.Yaw,
		SpeedKmh:      v.SpeedKmh(),
		Gear:          v.Gear(),
		SteeringInput: v.SteeringInput,

		CurrentLap:     p.CurrentLap,
		LapsTotal:      s.tracker.Config().LapsTotal,
		NextCheckpoint: p.NextCheckpoint,
		RaceElapsed:    p.RaceElapsed(s.now).Seconds(),
		LapElapsed:     p.LapElapsed(s.now).Seconds(),
		LastLap:        p.LastLap.Seconds(),
		BestLap:        p.BestLap.Seconds(),
		Finished:       p.Finished,
	}
	if !p.Started {
		t.Countdown = max(s.startAt.Sub(s.now), time.Duration(0)).Seconds()
	}
	return t
}
