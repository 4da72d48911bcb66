// Records one rig camera to an MJPEG AVI for a fixed number of seconds.
// The recording is a quick way to eyeball what a camera sees without a
// display attached to the simulator.
package main

import (
	"bytes"
	"flag"
	"time"

	"signal-collector/pkg/framecache"
	"signal-collector/pkg/sim"
	"signal-collector/pkg/utils"
	"signal-collector/pkg/utils/image"
	"signal-collector/pkg/video"
)

var (
	bridgeAddr = flag.String("bridge", "localhost:2000", "simulation bridge address")
	town       = flag.String("town", "Town01", "town to load")
	model      = flag.String("model", "vehicle.mercedes.coupe", "vehicle model")
	camera     = flag.String("camera", "front_wide", "rig camera to record")
	seconds    = flag.Int("seconds", 30, "recording length")
	out        = flag.String("out", "feed.avi", "output file")
	fps        = flag.Int("fps", 10, "recording frame rate")
)

func main() {
	flag.Parse()
	logger := utils.GetLogger()
	defer logger.Sync()

	spec, ok := sim.SpecByName(*camera)
	if !ok {
		logger.Fatalf("unknown rig camera %q", *camera)
	}

	client, err := sim.Dial(*bridgeAddr, 10*time.Second)
	if err != nil {
		logger.Fatal(err)
	}
	defer client.Close()

	world, err := client.LoadWorld(*town)
	if err != nil {
		logger.Fatal(err)
	}
	vehicle, err := world.SpawnVehicle(*model)
	if err != nil {
		logger.Fatal(err)
	}
	defer vehicle.Destroy()

	ch := framecache.Channel(spec.Name)
	cache := framecache.New(ch)
	sensor, err := vehicle.AttachCamera(spec, cache.Callback(ch))
	if err != nil {
		logger.Fatal(err)
	}
	defer sensor.Destroy()
	defer sensor.Stop()

	rec, err := video.NewRecorder(*out, spec.Width, spec.Height, *fps)
	if err != nil {
		logger.Fatal(err)
	}
	defer rec.Close()

	logger.Infof("recording %s to %s for %ds", spec.Name, *out, *seconds)

	deadline := time.Now().Add(time.Duration(*seconds) * time.Second)
	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	var lastSeq uint64
	var buf bytes.Buffer
	for time.Now().Before(deadline) {
		<-ticker.C
		frame := cache.Latest(ch)
		if frame == nil || frame.Seq == lastSeq {
			continue
		}
		lastSeq = frame.Seq

		buf.Reset()
		img := image.DecodeBGRA(frame.Data, frame.Width, frame.Height)
		if err := image.EncodeJPEG(img, &buf, 85); err != nil {
			logger.Warnf("encode frame: %s", err)
			continue
		}
		if err := rec.Add(buf.Bytes()); err != nil {
			logger.Fatalf("write frame: %s", err)
		}
	}

	logger.Infof("recorded %d frames (%s of video)", rec.Frames(), rec.Duration())
}
