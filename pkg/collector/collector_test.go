package collector

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"signal-collector/pkg/control"
	"signal-collector/pkg/framecache"
	"signal-collector/pkg/geom"
	"signal-collector/pkg/sim"
	"signal-collector/pkg/sim/simtest"
)

type harness struct {
	world *simtest.World
	veh   *simtest.Vehicle
	cache *framecache.Cache
	input *control.State
	col   *Collector
	root  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	world := simtest.NewWorld()
	v, err := world.SpawnVehicle("vehicle.tesla.model3")
	checkErr(t, err)
	veh := v.(*simtest.Vehicle)

	cache := framecache.New()
	input := &control.State{}
	root := t.TempDir()

	col, err := New(Config{
		World:     world,
		Vehicle:   veh,
		Cache:     cache,
		Input:     input,
		OutputDir: root,
		Town:      "Town04",
		Duration:  time.Minute,
	})
	checkErr(t, err)

	return &harness{world: world, veh: veh, cache: cache, input: input, col: col, root: root}
}

func (h *harness) fillCache() {
	h.cache.Put(framecache.Narrow, &sim.Image{Width: 4, Height: 4, Data: make([]byte, 64), Timestamp: time.Now()})
	h.cache.Put(framecache.Wide, &sim.Image{Width: 4, Height: 4, Data: make([]byte, 64), Timestamp: time.Now()})
}

// quitAfter latches quit once the world has ticked n times.
func (h *harness) quitAfter(n uint64) {
	h.world.OnTick = func(tick uint64) {
		if tick >= n {
			h.input.RequestQuit()
		}
	}
}

func signalAt(id uint32, x, y float64) sim.Actor {
	return sim.Actor{
		ID:       id,
		Type:     sim.TrafficSignals,
		Location: sim.Location{X: x, Y: y, Z: 5},
		State:    sim.SignalRed,
	}
}

func slotCount(sum *Summary, cam framecache.Channel, b geom.Bucket) int {
	return sum.Counts[Slot{Camera: cam, Bucket: b}.String()]
}

func TestRunCapturesOncePerCamera(t *testing.T) {
	h := newHarness(t)
	h.fillCache()
	// Signal 7 at planar distance 10, straight ahead of a vehicle at the
	// origin heading +X. Height is ignored for visibility but counts for
	// range; z=5 at x=10 stays inside the nearest bucket.
	h.world.SetActors(signalAt(7, 10, 0))
	h.quitAfter(3) // same geometry re-offered on later ticks

	sum, err := h.col.Run(context.Background())
	checkErr(t, err)

	if sum.Total != 2 {
		t.Fatalf("total = %d, want one capture per camera", sum.Total)
	}
	if n := slotCount(sum, framecache.Narrow, geom.Bucket10); n != 1 {
		t.Fatalf("narrow/10m = %d, want 1", n)
	}
	if n := slotCount(sum, framecache.Wide, geom.Bucket10); n != 1 {
		t.Fatalf("wide/10m = %d, want 1", n)
	}
	if h.col.ledger.Len() != 2 {
		t.Fatalf("ledger has %d keys, want 2", h.col.ledger.Len())
	}

	// Files landed in the right slots.
	for _, cam := range framecache.Channels {
		entries, err := os.ReadDir(path.Join(h.root, string(cam), "10m"))
		checkErr(t, err)
		if len(entries) != 1 {
			t.Fatalf("%s/10m holds %d files, want 1", cam, len(entries))
		}
	}
}

func TestRunNewBucketNewCapture(t *testing.T) {
	h := newHarness(t)
	h.fillCache()
	h.world.SetActors(signalAt(7, 20, 0))

	h.world.OnTick = func(tick uint64) {
		switch tick {
		case 2:
			// The vehicle closed in: same signal, nearer bucket.
			h.world.SetActors(signalAt(7, 10, 0))
		case 4:
			h.input.RequestQuit()
		}
	}

	sum, err := h.col.Run(context.Background())
	checkErr(t, err)

	if sum.Total != 4 {
		t.Fatalf("total = %d, want 2 buckets x 2 cameras", sum.Total)
	}
	for _, b := range []geom.Bucket{geom.Bucket10, geom.Bucket20} {
		for _, cam := range framecache.Channels {
			if n := slotCount(sum, cam, b); n != 1 {
				t.Fatalf("%s/%s = %d, want 1", cam, b, n)
			}
		}
	}
}

func TestRunIgnoresSignalBehind(t *testing.T) {
	h := newHarness(t)
	h.fillCache()
	h.world.SetActors(signalAt(9, -10, 0))
	h.quitAfter(2)

	sum, err := h.col.Run(context.Background())
	checkErr(t, err)
	if sum.Total != 0 {
		t.Fatalf("total = %d, signal behind the vehicle must not be captured", sum.Total)
	}
}

func TestRunIgnoresSignalOutOfRange(t *testing.T) {
	h := newHarness(t)
	h.fillCache()
	h.world.SetActors(signalAt(9, 80, 0))
	h.quitAfter(2)

	sum, err := h.col.Run(context.Background())
	checkErr(t, err)
	if sum.Total != 0 {
		t.Fatalf("total = %d, signal beyond the farthest bucket must not be captured", sum.Total)
	}
}

func TestRunWaitsForBothFrames(t *testing.T) {
	h := newHarness(t)
	// Only the narrow channel has delivered.
	h.cache.Put(framecache.Narrow, &sim.Image{Width: 4, Height: 4, Data: make([]byte, 64), Timestamp: time.Now()})
	h.world.SetActors(signalAt(5, 10, 0))
	h.quitAfter(2)

	sum, err := h.col.Run(context.Background())
	checkErr(t, err)
	if sum.Total != 0 {
		t.Fatalf("total = %d, capture phase must wait for both channels", sum.Total)
	}
}

func TestRunSurvivesQueryFailure(t *testing.T) {
	h := newHarness(t)
	h.fillCache()
	h.world.ActorsErr = fmt.Errorf("rpc worker busy")
	h.world.SetActors(signalAt(7, 10, 0))

	h.world.OnTick = func(tick uint64) {
		switch tick {
		case 3:
			// Queries recover mid-run.
			h.world.ActorsErr = nil
		case 5:
			h.input.RequestQuit()
		}
	}

	sum, err := h.col.Run(context.Background())
	checkErr(t, err)
	if sum.Total != 2 {
		t.Fatalf("total = %d, run should capture after queries recover", sum.Total)
	}
}

func TestRunRetriesAfterFailedSave(t *testing.T) {
	h := newHarness(t)
	h.fillCache()
	h.world.SetActors(signalAt(7, 10, 0))

	// Replace both 10m slot directories with plain files so the first
	// persist attempts fail with a write error.
	breakSlots := func() {
		for _, cam := range framecache.Channels {
			dir := path.Join(h.root, string(cam), "10m")
			checkErr(t, os.RemoveAll(dir))
			checkErr(t, os.WriteFile(dir, nil, 0660))
		}
	}
	repairSlots := func() {
		for _, cam := range framecache.Channels {
			dir := path.Join(h.root, string(cam), "10m")
			checkErr(t, os.Remove(dir))
			checkErr(t, os.MkdirAll(dir, 0750))
		}
	}
	breakSlots()

	h.world.OnTick = func(tick uint64) {
		switch tick {
		case 2:
			// Storage recovers mid-run; the keys must still be open.
			repairSlots()
		case 4:
			h.input.RequestQuit()
		}
	}

	sum, err := h.col.Run(context.Background())
	checkErr(t, err)

	if sum.Total != 2 {
		t.Fatalf("total = %d, a failed save must stay retryable", sum.Total)
	}
	if h.col.ledger.Len() != 2 {
		t.Fatalf("ledger has %d keys, want 2", h.col.ledger.Len())
	}
	for _, cam := range framecache.Channels {
		slot := Slot{Camera: cam, Bucket: geom.Bucket10}
		if n := h.col.store.Count(slot); n != 1 {
			t.Fatalf("%s counter = %d, want 1", slot, n)
		}
		entries, err := os.ReadDir(path.Join(h.root, string(cam), "10m"))
		checkErr(t, err)
		if len(entries) != 1 {
			t.Fatalf("%s holds %d files, want exactly one", slot, len(entries))
		}
		// The failed attempts did not move the sequence counter.
		if name := entries[0].Name(); !strings.HasSuffix(name, "_000000.png") {
			t.Fatalf("first successful save named %s, want counter 0", name)
		}
	}
}

func TestRunRestoresWorldSettings(t *testing.T) {
	h := newHarness(t)
	prior := sim.WorldSettings{Synchronous: false, FixedDeltaSeconds: 0}
	checkErr(t, h.world.ApplySettings(prior))
	h.world.Applied = nil
	h.quitAfter(1)

	_, err := h.col.Run(context.Background())
	checkErr(t, err)

	if len(h.world.Applied) != 2 {
		t.Fatalf("expected enable+restore settings, got %d applies", len(h.world.Applied))
	}
	if !h.world.Applied[0].Synchronous || h.world.Applied[0].FixedDeltaSeconds != FixedDelta {
		t.Fatalf("run did not enable synchronous stepping: %+v", h.world.Applied[0])
	}
	if h.world.Current != prior {
		t.Fatalf("settings not restored: %+v", h.world.Current)
	}
}

func TestRunStateMachine(t *testing.T) {
	h := newHarness(t)
	if h.col.State() != StateIdle {
		t.Fatalf("state = %s, want idle", h.col.State())
	}
	h.quitAfter(1)

	_, err := h.col.Run(context.Background())
	checkErr(t, err)
	if h.col.State() != StateTerminated {
		t.Fatalf("state = %s, want terminated", h.col.State())
	}

	// A terminated collector cannot be started again.
	if _, err := h.col.Run(context.Background()); err == nil {
		t.Fatal("second Run should be rejected")
	}
}

func TestRunSetupFailureTerminates(t *testing.T) {
	h := newHarness(t)
	h.world.SettingsErr = fmt.Errorf("bridge gone")

	if _, err := h.col.Run(context.Background()); err == nil {
		t.Fatal("run should fail when world settings are unreadable")
	}
	// The machine must not stay stuck in running after a setup failure.
	if h.col.State() != StateTerminated {
		t.Fatalf("state = %s, want terminated", h.col.State())
	}

	h2 := newHarness(t)
	h2.world.ApplyErr = fmt.Errorf("bridge gone")
	if _, err := h2.col.Run(context.Background()); err == nil {
		t.Fatal("run should fail when synchronous mode can not be enabled")
	}
	if h2.col.State() != StateTerminated {
		t.Fatalf("state = %s, want terminated", h2.col.State())
	}
}

func TestRunDurationBudget(t *testing.T) {
	world := simtest.NewWorld()
	v, err := world.SpawnVehicle("vehicle.tesla.model3")
	checkErr(t, err)

	col, err := New(Config{
		World:     world,
		Vehicle:   v,
		Cache:     framecache.New(),
		Input:     &control.State{},
		OutputDir: t.TempDir(),
		Duration:  time.Millisecond,
	})
	checkErr(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := col.Run(context.Background())
		if err != nil {
			t.Error(err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop when the duration budget was spent")
	}
}

func TestRunAppliesManualControl(t *testing.T) {
	h := newHarness(t)
	h.input.Set(control.Keys{Forward: true})
	h.quitAfter(2)

	_, err := h.col.Run(context.Background())
	checkErr(t, err)

	if len(h.veh.Controls) == 0 {
		t.Fatal("no control commands applied")
	}
	if h.veh.Controls[0].Throttle == 0 {
		t.Fatalf("forward key should throttle, got %+v", h.veh.Controls[0])
	}
	if len(h.world.Spectators) == 0 {
		t.Fatal("spectator framing never refreshed")
	}
}

func TestRunWritesManifest(t *testing.T) {
	h := newHarness(t)
	h.fillCache()
	h.world.SetActors(signalAt(7, 10, 0))
	h.quitAfter(2)

	sum, err := h.col.Run(context.Background())
	checkErr(t, err)

	data, err := os.ReadFile(path.Join(h.root, manifestFile))
	checkErr(t, err)
	if len(data) == 0 {
		t.Fatal("empty manifest")
	}
	if sum.SessionID == "" {
		t.Fatal("summary should carry the session id")
	}
	if h.col.manifest.Len() != sum.Total {
		t.Fatalf("manifest has %d entries, summary counted %d", h.col.manifest.Len(), sum.Total)
	}
}

func TestRunCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.world.OnTick = func(tick uint64) {
		if tick == 2 {
			cancel()
		}
	}

	_, err := h.col.Run(ctx)
	checkErr(t, err)
	if h.col.State() != StateTerminated {
		t.Fatalf("state = %s, cancellation must still reach cleanup", h.col.State())
	}
}
