package main

import (
	"context"
	"flag"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"signal-collector/pkg/collector"
	"signal-collector/pkg/control"
	"signal-collector/pkg/framecache"
	"signal-collector/pkg/geom"
	"signal-collector/pkg/ov"
	"signal-collector/pkg/sim"
	"signal-collector/pkg/utils"
	"signal-collector/pkg/utils/image"
	"signal-collector/pkg/utils/ps"
	"signal-collector/pkg/webdav"
)

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"

	bridgeTimeout = 10 * time.Second
	previewFPS    = 10
	ntpHost       = "pool.ntp.org"
)

var (
	bridgeAddr = flag.String("bridge", "localhost:2000", "simulation bridge address")
	town       = flag.String("town", "Town04", "town to load")
	model      = flag.String("model", "vehicle.tesla.model3", "vehicle model")
	outputDir  = flag.String("output", "./traffic_data", "dataset output root")
	duration   = flag.Int("duration", 3000, "collection duration in seconds")
	port       = flag.Int("port", 9999, "control api port")
	webdavPort = flag.Int("webdav-port", 9998, "webdav port")
	skipNTP    = flag.Bool("skip-ntp-check", false, "skip the startup clock check")

	cancelWebdav context.CancelFunc
	cancelLock   sync.Mutex

	logger *zap.SugaredLogger
)

func init() {
	logger = utils.GetLogger()
	flag.Parse()
}

func main() {
	defer logger.Sync()
	if err := run(); err != nil {
		logger.Fatal(err)
	}
}

func run() error {
	defer func() {
		cancelLock.Lock()
		if cancelWebdav != nil {
			cancelWebdav()
		}
		cancelLock.Unlock()
	}()

	if !*skipNTP {
		checkClock()
	}

	// Connect the bridge and build the session.
	client, err := sim.Dial(*bridgeAddr, bridgeTimeout)
	if err != nil {
		return err
	}
	defer client.Close()

	world, err := client.LoadWorld(*town)
	if err != nil {
		return err
	}

	vehicle, err := world.SpawnVehicle(*model)
	if err != nil {
		return fmt.Errorf("spawn vehicle: %w", err)
	}
	defer vehicle.Destroy()

	cache := framecache.New()
	for _, mount := range []struct {
		spec sim.CameraSpec
		ch   framecache.Channel
	}{
		{sim.FrontNarrow(), framecache.Narrow},
		{sim.FrontWide(), framecache.Wide},
	} {
		sensor, err := vehicle.AttachCamera(mount.spec, cache.Callback(mount.ch))
		if err != nil {
			return fmt.Errorf("attach %s: %w", mount.spec.Name, err)
		}
		defer sensor.Destroy()
		defer sensor.Stop()
	}

	input := &control.State{}
	utils.OnSignal(func() {
		logger.Info("interrupt, stopping run")
		input.RequestQuit()
	})

	col, err := collector.New(collector.Config{
		World:     world,
		Vehicle:   vehicle,
		Cache:     cache,
		Input:     input,
		OutputDir: *outputDir,
		Town:      *town,
		Duration:  time.Duration(*duration) * time.Second,
	})
	if err != nil {
		return err
	}

	shutdown := utils.Serve(router(col, client, cache, input), *port)
	defer shutdown()

	logger.Infof("session %s: %s, output %s, %ds budget", col.SessionID(), *town, *outputDir, *duration)
	logger.Infof("control panel on :%d  (W/A/S/D keys, space handbrake, Q quit)", *port)

	sum, runErr := col.Run(context.Background())
	if sum != nil {
		fmt.Print(sum.Table(framecache.Channels, geom.Buckets))
		fmt.Printf("Output: %s\n", *outputDir)
	}

	return runErr
}

func checkClock() {
	resp, err := ntp.Query(ntpHost)
	if err != nil {
		logger.Warnf("ntp check failed: %s", err)
		return
	}
	if off := resp.ClockOffset; off > time.Second || off < -time.Second {
		// Filenames embed wall-clock timestamps; a skewed clock makes
		// the dataset lie about when it was captured.
		logger.Warnf("system clock is off by %s from %s", off, ntpHost)
	}
}

func router(col *collector.Collector, client *sim.Client, cache *framecache.Cache, input *control.State) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, jsend.Success(status(col, client, cache)))
	})
	api.PUT("/keys", func(c *gin.Context) {
		var keys control.Keys
		if err := c.Bind(&keys); err != nil {
			return
		}
		input.Set(keys)
		c.JSON(http.StatusOK, jsend.Success(nil))
	})
	api.GET("/preview/:camera", func(c *gin.Context) {
		preview(c, cache)
	})
	api.PUT("/webdav", func(c *gin.Context) {
		ctlWebdav(c, col.Store().Root())
	})

	return r
}

func status(col *collector.Collector, client *sim.Client, cache *framecache.Cache) ov.Status {
	st := ov.Status{
		SessionID:      col.SessionID(),
		State:          col.State(),
		Town:           *town,
		ElapsedSeconds: col.Stats().Elapsed().Seconds(),
		Images:         col.Stats().Total(),
		Bytes:          humanize.Bytes(uint64(col.Store().Bytes())),
		FrameOverruns:  cache.Overruns(),
		CorruptFrames:  client.CorruptFrames(),
	}
	if size, err := ps.DirSize(col.Store().Root()); err == nil {
		st.DatasetBytes = humanize.Bytes(uint64(size))
	}
	if _, _, pct, err := ps.DiskUsage(col.Store().Root()); err == nil {
		st.DiskUsedPercent = pct
	}

	return st
}

// preview streams a camera channel as multipart MJPEG, re-encoding the
// cached frames at a low rate. Purely a driving aid; the dataset itself
// is written by the collector.
func preview(c *gin.Context, cache *framecache.Cache) {
	ch := framecache.Channel(c.Param("camera"))

	mimeWriter := multipart.NewWriter(c.Writer)
	c.Header("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mimeWriter.Boundary()))
	partHeader := make(textproto.MIMEHeader)
	partHeader.Add("Content-Type", "image/jpeg")

	ticker := time.NewTicker(time.Second / previewFPS)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}

		frame := cache.Latest(ch)
		if frame == nil || frame.Seq == lastSeq {
			continue
		}
		lastSeq = frame.Seq

		partWriter, err := mimeWriter.CreatePart(partHeader)
		if err != nil {
			return
		}
		img := image.DecodeBGRA(frame.Data, frame.Width, frame.Height)
		if err := image.EncodeJPEG(img, partWriter, 80); err != nil {
			logger.Debugf("preview encode: %s", err)
			return
		}
	}
}

func ctlWebdav(c *gin.Context, dir string) {
	cancelLock.Lock()
	defer cancelLock.Unlock()

	switch c.Query("op") {
	case webDavStart:
		if cancelWebdav != nil {
			c.JSON(http.StatusOK, jsend.Success("the webdav service is already enabled"))
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		webdav.Serve(ctx, *webdavPort, dir)
		cancelWebdav = cancel
		c.JSON(http.StatusOK, jsend.Success(c.Request.Host))
	case webDavShutdown:
		if cancelWebdav == nil {
			c.JSON(http.StatusOK, jsend.SimpleErr("the webdav service has been shut down"))
			return
		}
		cancelWebdav()
		cancelWebdav = nil
		c.JSON(http.StatusOK, jsend.Success(nil))
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}
