package framecache

import (
	"testing"
	"time"

	"signal-collector/pkg/sim"
)

func img(b byte) *sim.Image {
	return &sim.Image{
		Width:     2,
		Height:    2,
		Data:      []byte{b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b},
		Timestamp: time.Now(),
	}
}

func TestLatestOverwrite(t *testing.T) {
	c := New(Narrow, Wide)

	if c.Latest(Narrow) != nil {
		t.Fatal("expected empty slot before first delivery")
	}
	if c.Ready() {
		t.Fatal("cache should not be ready with empty slots")
	}

	c.Put(Narrow, img(1))
	f := c.Latest(Narrow)
	if f == nil || f.Data[0] != 1 {
		t.Fatalf("got %+v, want frame 1", f)
	}

	c.Put(Narrow, img(2))
	c.Put(Narrow, img(3))
	f = c.Latest(Narrow)
	if f.Data[0] != 3 {
		t.Fatalf("got frame %d, want latest frame 3", f.Data[0])
	}
	if f.Seq != 3 {
		t.Fatalf("got seq %d, want 3", f.Seq)
	}

	// Wide never received anything.
	if c.Latest(Wide) != nil {
		t.Fatal("wide slot should still be empty")
	}
	if c.Ready() {
		t.Fatal("cache should not be ready until every channel delivered")
	}

	c.Put(Wide, img(9))
	if !c.Ready() {
		t.Fatal("cache should be ready")
	}
}

func TestOverwriteKeepsReaderFrame(t *testing.T) {
	c := New(Narrow)
	c.Put(Narrow, img(1))
	held := c.Latest(Narrow)

	c.Put(Narrow, img(2))
	if held.Data[0] != 1 {
		t.Fatal("overwrite must not touch a frame already handed out")
	}
}

func TestOverrunCounting(t *testing.T) {
	c := New(Narrow)

	c.Put(Narrow, img(1))
	c.Put(Narrow, img(2)) // frame 1 never read
	c.Put(Narrow, img(3)) // frame 2 never read
	if got := c.Overruns(); got != 2 {
		t.Fatalf("got %d overruns, want 2", got)
	}

	c.Latest(Narrow)
	c.Put(Narrow, img(4)) // frame 3 was read, no overrun
	if got := c.Overruns(); got != 2 {
		t.Fatalf("got %d overruns, want 2 after read", got)
	}
}

func TestCallback(t *testing.T) {
	c := New(Narrow)
	cb := c.Callback(Narrow)
	cb(img(7))
	f := c.Latest(Narrow)
	if f == nil || f.Data[0] != 7 {
		t.Fatal("callback should write into the channel slot")
	}
}
