// Package simtest provides an in-memory bridge implementation for tests:
// a scriptable world with fixed actors, a vehicle that records applied
// controls, and cameras whose frames are pushed by the test itself.
package simtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signal-collector/pkg/sim"
)

type World struct {
	mu sync.Mutex

	Current     sim.WorldSettings
	Applied     []sim.WorldSettings
	SettingsErr error
	ApplyErr    error

	ActorList []sim.Actor
	ActorsErr error

	Spectators []sim.Transform

	Ticks  uint64
	OnTick func(n uint64)

	Vehicle *Vehicle
}

func NewWorld() *World {
	return &World{}
}

func (w *World) Settings() (sim.WorldSettings, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.SettingsErr != nil {
		return sim.WorldSettings{}, w.SettingsErr
	}
	return w.Current, nil
}

func (w *World) ApplySettings(s sim.WorldSettings) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ApplyErr != nil {
		return w.ApplyErr
	}
	w.Current = s
	w.Applied = append(w.Applied, s)
	return nil
}

func (w *World) Tick(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	w.Ticks++
	n := w.Ticks
	hook := w.OnTick
	w.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return n, nil
}

func (w *World) Actors(filter string) ([]sim.Actor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ActorsErr != nil {
		return nil, w.ActorsErr
	}
	out := make([]sim.Actor, 0, len(w.ActorList))
	for _, a := range w.ActorList {
		if a.Type == filter || filter == "" {
			out = append(out, a)
		}
	}
	return out, nil
}

// SetActors replaces the actor snapshot returned by subsequent queries.
func (w *World) SetActors(actors ...sim.Actor) {
	w.mu.Lock()
	w.ActorList = actors
	w.mu.Unlock()
}

func (w *World) SetSpectator(t sim.Transform) error {
	w.mu.Lock()
	w.Spectators = append(w.Spectators, t)
	w.mu.Unlock()
	return nil
}

func (w *World) SpawnVehicle(model string) (sim.Vehicle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Vehicle != nil {
		return nil, fmt.Errorf("vehicle already spawned")
	}
	w.Vehicle = &Vehicle{Model: model, cameras: make(map[string]sim.FrameFunc)}
	return w.Vehicle, nil
}

type Vehicle struct {
	mu sync.Mutex

	Model     string
	Pose      sim.Transform
	Vel       sim.Location
	Controls  []sim.VehicleControl
	Sensors   []*Sensor
	Destroyed bool

	cameras map[string]sim.FrameFunc
}

func (v *Vehicle) ID() uint32 { return 1 }

func (v *Vehicle) Transform() (sim.Transform, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Pose, nil
}

func (v *Vehicle) SetPose(t sim.Transform) {
	v.mu.Lock()
	v.Pose = t
	v.mu.Unlock()
}

func (v *Vehicle) Velocity() (sim.Location, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Vel, nil
}

func (v *Vehicle) ApplyControl(ctl sim.VehicleControl) error {
	v.mu.Lock()
	v.Controls = append(v.Controls, ctl)
	v.mu.Unlock()
	return nil
}

func (v *Vehicle) AttachCamera(spec sim.CameraSpec, fn sim.FrameFunc) (sim.Sensor, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := &Sensor{Spec: spec}
	v.Sensors = append(v.Sensors, s)
	v.cameras[spec.Name] = fn
	return s, nil
}

func (v *Vehicle) Destroy() error {
	v.mu.Lock()
	v.Destroyed = true
	v.mu.Unlock()
	return nil
}

// PushFrame delivers a synthetic frame to the named camera's callback,
// the way the bridge read loop would.
func (v *Vehicle) PushFrame(camera string, width, height int) {
	v.mu.Lock()
	fn := v.cameras[camera]
	v.mu.Unlock()
	if fn == nil {
		return
	}
	fn(&sim.Image{
		Width:     width,
		Height:    height,
		Data:      make([]byte, width*height*4),
		Timestamp: time.Now(),
	})
}

type Sensor struct {
	Spec      sim.CameraSpec
	Stopped   bool
	Destroyed bool
}

func (s *Sensor) Stop() error {
	s.Stopped = true
	return nil
}

func (s *Sensor) Destroy() error {
	s.Destroyed = true
	return nil
}
