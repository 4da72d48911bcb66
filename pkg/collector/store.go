package collector

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"signal-collector/pkg/framecache"
	"signal-collector/pkg/geom"
	"signal-collector/pkg/utils/image"
)

const (
	defaultImageExt = ".png"
	defaultFilePerm = 0660
	defaultDirPerm  = 0750
)

// Slot is one output directory of the dataset: a camera crossed with a
// distance bucket.
type Slot struct {
	Camera framecache.Channel
	Bucket geom.Bucket
}

func (s Slot) String() string {
	return fmt.Sprintf("%s/%s", s.Camera, s.Bucket)
}

// Store persists frames under root/{camera}/{bucket}/ with a
// per-slot sequence counter. Filenames embed the capture timestamp and
// the zero-padded counter, so lexicographic order within a slot matches
// capture order and names stay unique even for several saves inside one
// simulation tick.
type Store struct {
	root string

	mu       sync.Mutex
	counters map[Slot]int
	bytes    int64
}

// NewStore creates the full camera × bucket directory tree up front.
func NewStore(root string, cameras []framecache.Channel, buckets []geom.Bucket) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("output root can not be empty")
	}
	for _, cam := range cameras {
		for _, b := range buckets {
			if err := os.MkdirAll(path.Join(root, string(cam), string(b)), defaultDirPerm); err != nil {
				return nil, fmt.Errorf("create slot dir: %w", err)
			}
		}
	}

	return &Store{
		root:     root,
		counters: make(map[Slot]int),
	}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Save writes the frame into the slot's directory and returns the
// generated filename. A nil frame (no delivery yet on that channel) is a
// normal no-op: empty name, nil error, counter untouched. On a write
// error the counter is likewise untouched, so the sequence stays dense
// across retries.
func (s *Store) Save(frame *framecache.Frame, bucket geom.Bucket) (string, error) {
	if frame == nil {
		return "", nil
	}
	slot := Slot{Camera: frame.Channel, Bucket: bucket}

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	img := image.DecodeBGRA(frame.Data, frame.Width, frame.Height)
	if err := image.EncodePNG(img, &buf); err != nil {
		return "", fmt.Errorf("encode %s: %w", slot, err)
	}

	name := s.imageName(slot, time.Now())
	dst := path.Join(s.root, string(slot.Camera), string(slot.Bucket), name)
	if err := os.WriteFile(dst, buf.Bytes(), defaultFilePerm); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}

	s.counters[slot]++
	s.bytes += int64(buf.Len())

	return name, nil
}

func (s *Store) imageName(slot Slot, ts time.Time) string {
	return fmt.Sprintf("signal_%s_%06d_%06d%s",
		ts.Format("20060102_150405"), ts.Nanosecond()/1000, s.counters[slot], defaultImageExt)
}

// Count returns the slot's sequence counter, i.e. how many images the
// slot holds.
func (s *Store) Count(slot Slot) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[slot]
}

// Counts returns a snapshot of every slot counter.
func (s *Store) Counts() map[Slot]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Slot]int, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// Bytes returns the total encoded size written so far.
func (s *Store) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}
