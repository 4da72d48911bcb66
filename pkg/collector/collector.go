// Package collector implements the capture-orchestration engine: a
// synchronously stepped tick loop that fuses asynchronously delivered
// camera frames with world-state queries, classifies nearby traffic
// signals by distance bucket, and persists each (signal, bucket, camera)
// combination at most once.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"signal-collector/pkg/control"
	"signal-collector/pkg/framecache"
	"signal-collector/pkg/geom"
	"signal-collector/pkg/sim"
	"signal-collector/pkg/utils"
)

const (
	// StateIdle through StateTerminated are the run lifecycle states.
	StateIdle       = "idle"
	StateRunning    = "running"
	StateStopping   = "stopping"
	StateTerminated = "terminated"

	eventStart  = "start"
	eventStop   = "stop"
	eventFinish = "finish"

	// FixedDelta is the simulated clock step applied while a session
	// runs.
	FixedDelta = 0.05

	defaultProgressEvery = 30 * time.Second

	// Spectator chase-cam offsets relative to the vehicle.
	spectatorAhead = 2.5
	spectatorUp    = 1.5
	spectatorPitch = -5
)

type Config struct {
	World   sim.World
	Vehicle sim.Vehicle
	Cache   *framecache.Cache
	Input   *control.State

	OutputDir string
	Town      string
	Duration  time.Duration

	// ProgressEvery is the wall-clock cadence of progress lines;
	// defaults to 30s.
	ProgressEvery time.Duration

	// Cameras defaults to the narrow/wide capture pair.
	Cameras []framecache.Channel
}

type Collector struct {
	cfg    Config
	logger *zap.SugaredLogger

	session  string
	machine  *fsm.FSM
	store    *Store
	ledger   *Ledger
	stats    *Stats
	manifest *Manifest
}

func New(cfg Config) (*Collector, error) {
	if cfg.World == nil || cfg.Vehicle == nil || cfg.Cache == nil || cfg.Input == nil {
		return nil, fmt.Errorf("collector: world, vehicle, cache and input are all required")
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("collector: duration budget must be positive")
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	if len(cfg.Cameras) == 0 {
		cfg.Cameras = framecache.Channels
	}

	store, err := NewStore(cfg.OutputDir, cfg.Cameras, geom.Buckets)
	if err != nil {
		return nil, err
	}

	return &Collector{
		cfg:     cfg,
		logger:  utils.NamedLogger("collector"),
		session: uuid.NewString(),
		machine: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventStart, Src: []string{StateIdle}, Dst: StateRunning},
				{Name: eventStop, Src: []string{StateRunning}, Dst: StateStopping},
				{Name: eventFinish, Src: []string{StateStopping}, Dst: StateTerminated},
			},
			fsm.Callbacks{},
		),
		store:    store,
		ledger:   NewLedger(),
		stats:    NewStats(),
		manifest: &Manifest{},
	}, nil
}

func (c *Collector) SessionID() string { return c.session }

func (c *Collector) State() string { return c.machine.Current() }

func (c *Collector) Store() *Store { return c.store }

func (c *Collector) Stats() *Stats { return c.stats }

// Run drives the session until the duration budget is spent, the quit
// key is pressed, or ctx is canceled. World-wide settings altered at
// start (synchronous stepping) are restored on every exit path, and the
// summary is produced even when the loop ends early.
func (c *Collector) Run(ctx context.Context) (*Summary, error) {
	if err := c.machine.Event(ctx, eventStart); err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}

	prior, err := c.cfg.World.Settings()
	if err != nil {
		c.terminate()
		return nil, fmt.Errorf("collector: read world settings: %w", err)
	}
	if err := c.cfg.World.ApplySettings(sim.WorldSettings{
		Synchronous:       true,
		FixedDeltaSeconds: FixedDelta,
	}); err != nil {
		c.terminate()
		return nil, fmt.Errorf("collector: enable synchronous mode: %w", err)
	}

	runErr := c.loop(ctx)

	if err := c.cfg.World.ApplySettings(prior); err != nil {
		c.logger.Warnf("restore world settings: %s", err)
	}
	c.terminate()

	sum := c.stats.Summarize(c.session, c.cfg.Town, c.store.Bytes())
	if err := c.manifest.Dump(c.store.Root(), sum); err != nil {
		c.logger.Warnf("write session manifest: %s", err)
	}

	return sum, runErr
}

// terminate walks the machine to its final state. Run calls it on
// every exit path, including setup failures, so State never reports a
// dead run as running.
func (c *Collector) terminate() {
	if c.machine.Current() == StateRunning {
		_ = c.machine.Event(context.Background(), eventStop)
	}
	_ = c.machine.Event(context.Background(), eventFinish)
}

func (c *Collector) loop(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.Duration)
	lastProgress := time.Now()

	for {
		keys := c.cfg.Input.Snapshot()
		switch {
		case ctx.Err() != nil:
			return nil
		case keys.Quit:
			c.logger.Info("quit requested")
			return nil
		case !time.Now().Before(deadline):
			c.logger.Info("duration budget spent")
			return nil
		}

		c.applyControl(keys)

		// The only suspension point of the tick: blocks until the
		// simulator has produced the next step.
		if _, err := c.cfg.World.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("world tick: %w", err)
		}

		pose, err := c.cfg.Vehicle.Transform()
		if err != nil {
			c.logger.Warnf("vehicle transform: %s", err)
			continue
		}
		c.refreshSpectator(pose)

		c.capturePhase(pose)

		if time.Since(lastProgress) >= c.cfg.ProgressEvery {
			lastProgress = time.Now()
			c.logger.Infof("progress: %s elapsed, %d images, ledger %d keys, %d frame overruns",
				c.stats.Elapsed().Round(time.Second), c.stats.Total(),
				c.ledger.Len(), c.cfg.Cache.Overruns())
		}
	}
}

func (c *Collector) applyControl(keys control.Keys) {
	vel, err := c.cfg.Vehicle.Velocity()
	if err != nil {
		c.logger.Warnf("vehicle velocity: %s", err)
		vel = sim.Location{}
	}
	ctl := control.Map(keys, vel.Norm())
	if err := c.cfg.Vehicle.ApplyControl(ctl); err != nil {
		c.logger.Warnf("apply control: %s", err)
	}
}

func (c *Collector) refreshSpectator(pose sim.Transform) {
	forward := pose.Forward()
	t := sim.Transform{
		Location: pose.Location.Add(sim.Location{
			X: forward.X * spectatorAhead,
			Y: forward.Y * spectatorAhead,
			Z: spectatorUp,
		}),
		Rotation: sim.Rotation{Pitch: spectatorPitch, Yaw: pose.Rotation.Yaw},
	}
	if err := c.cfg.World.SetSpectator(t); err != nil {
		c.logger.Debugf("set spectator: %s", err)
	}
}

// capturePhase runs the per-tick detection-and-persist pass. A failed
// world query aborts this tick's phase only; the run continues.
func (c *Collector) capturePhase(pose sim.Transform) {
	if !c.cfg.Cache.Ready() {
		return
	}

	signals, err := c.cfg.World.Actors(sim.TrafficSignals)
	if err != nil {
		c.logger.Warnf("signal query failed, skipping tick: %s", err)
		return
	}

	forward := pose.Forward()
	here := pose.Location

	for _, sig := range signals {
		distance := here.Distance(sig.Location)
		bucket, ok := geom.BucketOf(distance)
		if !ok {
			continue
		}
		if !geom.InFront(forward, sig.Location.Planar().Sub(here.Planar())) {
			continue
		}

		for _, cam := range c.cfg.Cameras {
			key := CaptureKey{Signal: sig.ID, Bucket: bucket, Camera: cam}
			if c.ledger.Captured(key) {
				continue
			}

			name, err := c.store.Save(c.cfg.Cache.Latest(cam), bucket)
			if err != nil {
				// Counter and ledger untouched: the key stays
				// retryable next time the signal is seen.
				c.logger.Warnf("save %s/%s: %s", cam, bucket, err)
				continue
			}
			if name == "" {
				// No frame yet on this channel.
				continue
			}

			c.ledger.Mark(key)
			slot := Slot{Camera: cam, Bucket: bucket}
			c.stats.RecordCapture(slot, distance)
			c.manifest.Add(Entry{
				File:     name,
				Camera:   string(cam),
				Bucket:   string(bucket),
				Signal:   sig.ID,
				State:    sig.State,
				Distance: distance,
				At:       time.Now(),
			})
			c.logger.Infof("[%s] saved %s (signal %d, state %s, %.1fm)",
				slot, name, sig.ID, sig.State, distance)
		}
	}
}
