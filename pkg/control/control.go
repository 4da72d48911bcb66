// Package control turns the current key state into a vehicle control
// command. Keys are fed from the HTTP control panel; the mapper itself
// is a pure function of the key state and the vehicle's current speed.
package control

import (
	"sync"

	"signal-collector/pkg/sim"
)

const (
	throttleForward = 0.7
	throttleReverse = 0.5
	brakeModerate   = 0.5
	steerMagnitude  = 0.5

	// Below this speed the brake key turns into reverse-assist, so
	// holding brake while stopped backs the vehicle up instead of
	// doing nothing.
	reverseAssistSpeed = 0.1
)

// Keys is the pressed-key snapshot for one tick.
type Keys struct {
	Forward    bool `json:"forward"`
	Brake      bool `json:"brake"`
	SteerLeft  bool `json:"steerLeft"`
	SteerRight bool `json:"steerRight"`
	Handbrake  bool `json:"handbrake"`
	Quit       bool `json:"quit"`
}

// Map computes the control command for the given key state and current
// speed in m/s. Forward wins over brake when both are held. When both
// steer keys are held, left wins; the tie needs some deterministic rule
// and this one is kept from the collection runs the dataset started with.
func Map(k Keys, speed float64) sim.VehicleControl {
	var ctl sim.VehicleControl

	switch {
	case k.Forward:
		ctl.Throttle = throttleForward
	case k.Brake:
		ctl.Brake = brakeModerate
		if speed < reverseAssistSpeed {
			ctl.Throttle = throttleReverse
			ctl.Reverse = true
			ctl.Brake = 0
		}
	}

	switch {
	case k.SteerLeft:
		ctl.Steer = -steerMagnitude
	case k.SteerRight:
		ctl.Steer = steerMagnitude
	}

	if k.Handbrake {
		ctl.HandBrake = true
	}

	return ctl
}

// State is the shared key state between the HTTP input handler and the
// tick loop. The handler replaces the whole snapshot; the loop reads it
// once per tick.
type State struct {
	mu   sync.Mutex
	keys Keys
	quit bool
}

func (s *State) Set(k Keys) {
	s.mu.Lock()
	s.keys = k
	if k.Quit {
		// Quit latches: a later key update must not cancel a
		// requested stop.
		s.quit = true
	}
	s.mu.Unlock()
}

func (s *State) Snapshot() Keys {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keys
	k.Quit = s.quit
	return k
}

// RequestQuit latches the quit flag directly (signal handler path).
func (s *State) RequestQuit() {
	s.mu.Lock()
	s.quit = true
	s.mu.Unlock()
}
