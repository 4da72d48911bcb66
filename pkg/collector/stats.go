package collector

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"

	"signal-collector/pkg/framecache"
	"signal-collector/pkg/geom"
)

// Stats accumulates per-slot capture counts and the observed capture
// distances, for progress lines during the run and the summary table at
// the end.
type Stats struct {
	mu        sync.Mutex
	counts    map[Slot]int
	distances map[geom.Bucket][]float64
	started   time.Time
}

func NewStats() *Stats {
	return &Stats{
		counts:    make(map[Slot]int),
		distances: make(map[geom.Bucket][]float64),
		started:   time.Now(),
	}
}

func (s *Stats) RecordCapture(slot Slot, distance float64) {
	s.mu.Lock()
	s.counts[slot]++
	s.distances[slot.Bucket] = append(s.distances[slot.Bucket], distance)
	s.mu.Unlock()
}

func (s *Stats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.counts {
		total += n
	}
	return total
}

func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.started)
}

// Summary is the aggregate printed when a run terminates, and the bulk
// of the session manifest.
type Summary struct {
	SessionID string              `json:"sessionId"`
	Town      string              `json:"town"`
	StartedAt time.Time           `json:"startedAt"`
	EndedAt   time.Time           `json:"endedAt"`
	Counts    map[string]int      `json:"counts"`
	Total     int                 `json:"total"`
	Bytes     int64               `json:"bytes"`
	Buckets   map[string]Distance `json:"buckets"`
}

// Distance describes the spread of capture distances within a bucket.
type Distance struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	N      int     `json:"n"`
}

func (s *Stats) Summarize(sessionID, town string, bytes int64) *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := &Summary{
		SessionID: sessionID,
		Town:      town,
		StartedAt: s.started,
		EndedAt:   time.Now(),
		Counts:    make(map[string]int, len(s.counts)),
		Bytes:     bytes,
		Buckets:   make(map[string]Distance),
	}
	for slot, n := range s.counts {
		sum.Counts[slot.String()] = n
		sum.Total += n
	}
	for bucket, ds := range s.distances {
		mean, std := stat.MeanStdDev(ds, nil)
		if len(ds) < 2 {
			std = 0
		}
		sum.Buckets[string(bucket)] = Distance{Mean: mean, StdDev: std, N: len(ds)}
	}

	return sum
}

// Table renders the per-camera, per-bucket count table in the order the
// run was configured with.
func (sum *Summary) Table(cameras []framecache.Channel, buckets []geom.Bucket) string {
	var b strings.Builder
	line := strings.Repeat("=", 50)

	fmt.Fprintf(&b, "%s\nCOLLECTION SUMMARY\n%s\n", line, line)
	for _, cam := range cameras {
		fmt.Fprintf(&b, "\n%s camera:\n", strings.ToUpper(string(cam)))
		for _, bucket := range buckets {
			n := sum.Counts[Slot{Camera: cam, Bucket: bucket}.String()]
			fmt.Fprintf(&b, "  %s: %d images", bucket, n)
			if d, ok := sum.Buckets[string(bucket)]; ok && d.N > 0 {
				fmt.Fprintf(&b, " (dist %.1f±%.1f m)", d.Mean, d.StdDev)
			}
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\nTotal: %d images, %s\n%s\n", sum.Total, humanize.Bytes(uint64(sum.Bytes)), line)

	return b.String()
}
