// Package ov holds the collector API's value objects.
package ov

// Status is the live run state served by GET /api/status.
type Status struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	Town      string `json:"town"`

	ElapsedSeconds float64 `json:"elapsedSeconds"`
	Images         int     `json:"images"`
	Bytes          string  `json:"bytes"`

	// DatasetBytes is the on-disk size of the whole output root, which
	// can exceed Bytes when the root holds earlier sessions.
	DatasetBytes string `json:"datasetBytes"`

	FrameOverruns uint64 `json:"frameOverruns"`
	CorruptFrames uint64 `json:"corruptFrames"`

	DiskUsedPercent float64 `json:"diskUsedPercent"`
}
