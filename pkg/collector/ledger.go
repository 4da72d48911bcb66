package collector

import (
	"sync"

	"signal-collector/pkg/framecache"
	"signal-collector/pkg/geom"
)

// CaptureKey identifies one capture obligation: a physical signal seen
// in a distance bucket through one camera. Each key is persisted at most
// once per run.
type CaptureKey struct {
	Signal uint32
	Bucket geom.Bucket
	Camera framecache.Channel
}

// Ledger records which capture keys have already been persisted. It only
// grows; it is reset by starting a new run. Mark is called strictly
// after a successful persist, so a failed write stays retryable the next
// time the same key shows up.
type Ledger struct {
	mu   sync.Mutex
	seen map[CaptureKey]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{seen: make(map[CaptureKey]struct{})}
}

func (l *Ledger) Captured(k CaptureKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[k]
	return ok
}

func (l *Ledger) Mark(k CaptureKey) {
	l.mu.Lock()
	l.seen[k] = struct{}{}
	l.mu.Unlock()
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
