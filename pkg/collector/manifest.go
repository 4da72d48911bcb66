package collector

import (
	"os"
	"path"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"signal-collector/pkg/sim"
)

const manifestFile = "session.json"

// Entry is one persisted capture in the session manifest.
type Entry struct {
	File     string          `json:"file"`
	Camera   string          `json:"camera"`
	Bucket   string          `json:"bucket"`
	Signal   uint32          `json:"signal"`
	State    sim.SignalState `json:"state,omitempty"`
	Distance float64         `json:"distance"`
	At       time.Time       `json:"at"`
}

// Manifest records what a session produced. It is dumped to
// session.json at the output root when the run terminates, so a dataset
// directory stays self-describing.
type Manifest struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *Manifest) Add(e Entry) {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
}

func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type manifestDoc struct {
	Summary *Summary `json:"summary"`
	Entries []Entry  `json:"entries"`
}

func (m *Manifest) Dump(root string, sum *Summary) error {
	m.mu.Lock()
	doc := manifestDoc{Summary: sum, Entries: m.entries}
	m.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path.Join(root, manifestFile), data, defaultFilePerm)
}
