// Package video assembles camera frames into an MJPEG AVI, used by the
// feed recorder to keep a viewable trace of a drive.
package video

import (
	"time"

	"github.com/icza/mjpeg"
)

type Recorder struct {
	fps int

	cnt int
	aw  mjpeg.AviWriter
}

// NewRecorder opens an AVI file for writing at the given geometry.
// Frames added later must be JPEG-encoded at the same geometry.
func NewRecorder(path string, width, height, fps int) (*Recorder, error) {
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, err
	}

	return &Recorder{fps: fps, aw: aw}, nil
}

func (r *Recorder) Add(jpegFrame []byte) error {
	if err := r.aw.AddFrame(jpegFrame); err != nil {
		return err
	}
	r.cnt++

	return nil
}

func (r *Recorder) Frames() int {
	return r.cnt
}

// Duration returns the playback length of what has been recorded so far.
func (r *Recorder) Duration() time.Duration {
	if r.fps <= 0 {
		return 0
	}
	return time.Duration(r.cnt) * time.Second / time.Duration(r.fps)
}

func (r *Recorder) Close() error {
	return r.aw.Close()
}
