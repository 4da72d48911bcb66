package sim

import (
	"math"
	"time"

	"signal-collector/pkg/geom"
)

// TrafficSignals is the actor type filter understood by World.Actors.
const TrafficSignals = "traffic.traffic_light"

type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (l Location) Planar() geom.Vec2 {
	return geom.Vec2{X: l.X, Y: l.Y}
}

func (l Location) Distance(o Location) float64 {
	dx := l.X - o.X
	dy := l.Y - o.Y
	dz := l.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the vector length; for a velocity this is speed in m/s.
func (l Location) Norm() float64 {
	return math.Sqrt(l.X*l.X + l.Y*l.Y + l.Z*l.Z)
}

func (l Location) Add(o Location) Location {
	return Location{X: l.X + o.X, Y: l.Y + o.Y, Z: l.Z + o.Z}
}

// Rotation angles are in degrees, matching the simulator convention.
type Rotation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

type Transform struct {
	Location Location `json:"location"`
	Rotation Rotation `json:"rotation"`
}

// Forward returns the planar unit vector of the transform's heading.
func (t Transform) Forward() geom.Vec2 {
	yaw := t.Rotation.Yaw * math.Pi / 180
	return geom.Vec2{X: math.Cos(yaw), Y: math.Sin(yaw)}
}

type VehicleControl struct {
	Throttle  float64 `json:"throttle"`
	Steer     float64 `json:"steer"`
	Brake     float64 `json:"brake"`
	HandBrake bool    `json:"handBrake"`
	Reverse   bool    `json:"reverse"`
}

// SignalState is the light phase of a traffic signal actor. It is logged
// alongside captures but never consulted by the capture logic.
type SignalState string

const (
	SignalRed     SignalState = "red"
	SignalYellow  SignalState = "yellow"
	SignalGreen   SignalState = "green"
	SignalOff     SignalState = "off"
	SignalUnknown SignalState = "unknown"
)

// Actor is a world entity snapshot returned by an Actors query. The ID is
// opaque but stable for the actor's lifetime, which is what makes capture
// deduplication across ticks meaningful.
type Actor struct {
	ID       uint32      `json:"id"`
	Type     string      `json:"type"`
	Location Location    `json:"location"`
	State    SignalState `json:"state,omitempty"`
}

type WorldSettings struct {
	Synchronous       bool    `json:"synchronous"`
	FixedDeltaSeconds float64 `json:"fixedDeltaSeconds"`
}

// CameraSpec describes an RGB camera mounted relative to the vehicle.
type CameraSpec struct {
	Name   string   `json:"name"`
	Mount  Location `json:"mount"`
	Aim    Rotation `json:"aim"`
	FOV    float64  `json:"fov"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
}

// Image is a single delivered camera frame: tightly packed BGRA pixels,
// row-major, as produced by the simulator's RGB camera.
type Image struct {
	Width     int
	Height    int
	Data      []byte
	Timestamp time.Time
}

// Valid reports whether the pixel buffer matches the declared geometry.
func (i *Image) Valid() bool {
	return i.Width > 0 && i.Height > 0 && len(i.Data) == i.Width*i.Height*4
}
