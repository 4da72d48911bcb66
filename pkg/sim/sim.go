// Package sim talks to the simulation bridge: a sidecar process that owns
// the actual simulator session and exposes world stepping, actor queries,
// vehicle control and camera streams over a single TCP connection.
package sim

import "context"

// FrameFunc receives camera frames on the bridge client's read loop. The
// image buffer is owned by the callback after delivery and is never
// touched by the client again. Callbacks must not block: the read loop
// that invokes them also dispatches command responses.
type FrameFunc func(img *Image)

type World interface {
	// Settings returns the current world execution settings.
	Settings() (WorldSettings, error)
	ApplySettings(WorldSettings) error

	// Tick advances the world by one fixed step and blocks until the
	// simulator has produced it. This is the orchestrator's only
	// suspension point.
	Tick(ctx context.Context) (frameID uint64, err error)

	// Actors returns a snapshot of all actors whose type matches the
	// given filter, e.g. TrafficSignals.
	Actors(filter string) ([]Actor, error)

	// SetSpectator moves the free-floating spectator camera.
	SetSpectator(t Transform) error

	SpawnVehicle(model string) (Vehicle, error)
}

type Vehicle interface {
	ID() uint32
	Transform() (Transform, error)
	// Velocity returns the current velocity vector in m/s.
	Velocity() (Location, error)
	ApplyControl(VehicleControl) error

	// AttachCamera spawns a camera rigidly attached to the vehicle and
	// starts streaming its frames to fn.
	AttachCamera(spec CameraSpec, fn FrameFunc) (Sensor, error)

	Destroy() error
}

type Sensor interface {
	// Stop halts frame delivery; the sensor actor keeps existing.
	Stop() error
	// Destroy removes the sensor actor from the world.
	Destroy() error
}
