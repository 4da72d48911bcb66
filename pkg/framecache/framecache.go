// Package framecache holds the most recently delivered frame per camera
// channel. Each channel is a single-slot mailbox: sensor callbacks
// overwrite the slot on their own schedule, the capture loop reads the
// latest frame once per tick. Frames are replaced whole and never
// mutated in place, so a reader holding a frame pointer is unaffected by
// later overwrites.
package framecache

import (
	"sync"
	"time"

	"signal-collector/pkg/sim"
)

// Channel identifies one camera stream of the capture pair.
type Channel string

const (
	Narrow Channel = "narrow"
	Wide   Channel = "wide"
)

// Channels lists the capture channels in a fixed order.
var Channels = []Channel{Narrow, Wide}

// Frame is an immutable snapshot of one delivered camera image.
// Data must not be modified after the frame enters the cache.
type Frame struct {
	Channel   Channel
	Width     int
	Height    int
	Data      []byte
	Seq       uint64
	Timestamp time.Time
}

type slot struct {
	mu       sync.Mutex
	frame    *Frame
	seq      uint64
	unread   bool
	overruns uint64
}

// Cache owns one slot per channel. Writers and the reader may run on
// different goroutines; each slot is independently locked.
type Cache struct {
	slots map[Channel]*slot
}

func New(channels ...Channel) *Cache {
	if len(channels) == 0 {
		channels = Channels
	}
	c := &Cache{slots: make(map[Channel]*slot, len(channels))}
	for _, ch := range channels {
		c.slots[ch] = &slot{}
	}
	return c
}

// Put overwrites the channel's slot with a new frame. A frame that was
// never read before being overwritten counts as an overrun; that is the
// expected steady state when the sensor outpaces the tick loop, but the
// count stays observable.
func (c *Cache) Put(ch Channel, img *sim.Image) {
	s := c.slots[ch]
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.unread {
		s.overruns++
	}
	s.seq++
	s.frame = &Frame{
		Channel:   ch,
		Width:     img.Width,
		Height:    img.Height,
		Data:      img.Data,
		Seq:       s.seq,
		Timestamp: img.Timestamp,
	}
	s.unread = true
	s.mu.Unlock()
}

// Callback adapts a channel's slot into a sim.FrameFunc for the bridge.
func (c *Cache) Callback(ch Channel) sim.FrameFunc {
	return func(img *sim.Image) {
		c.Put(ch, img)
	}
}

// Latest returns the channel's most recent frame, or nil if none has
// arrived yet. The frame is not removed; successive reads within the
// same tick observe the same frame unless the sensor delivered a new one
// in between.
func (c *Cache) Latest(ch Channel) *Frame {
	s := c.slots[ch]
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = false
	return s.frame
}

// Ready reports whether every channel has received at least one frame.
func (c *Cache) Ready() bool {
	for _, s := range c.slots {
		s.mu.Lock()
		empty := s.frame == nil
		s.mu.Unlock()
		if empty {
			return false
		}
	}
	return true
}

// Overruns returns the total number of frames overwritten before any
// read, summed over all channels.
func (c *Cache) Overruns() uint64 {
	var n uint64
	for _, s := range c.slots {
		s.mu.Lock()
		n += s.overruns
		s.mu.Unlock()
	}
	return n
}
