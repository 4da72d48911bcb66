// Label Studio ML backend for auto-labeling harvested images: accepts
// prediction tasks from the annotation UI and forwards the referenced
// images to the detection inference service.
package main

import (
	"flag"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signal-collector/pkg/detect"
	"signal-collector/pkg/utils"
)

const signalLabel = "traffic_signal"

var (
	port         = flag.Int("port", 9090, "listen port")
	inferenceURL = flag.String("inference", "http://localhost:8500", "inference service base url")
	documentRoot = flag.String("root", ".", "document root for local-files image references")
	modelVersion = flag.String("model-version", "yolov11", "model version reported to the ui")

	client *detect.Client
	logger *zap.SugaredLogger
)

type task struct {
	Data map[string]string `json:"data"`
}

type predictRequest struct {
	Tasks       []task `json:"tasks"`
	LabelConfig string `json:"label_config"`
}

type predictResponse struct {
	Results []detect.Prediction `json:"results"`
}

func main() {
	flag.Parse()
	logger = utils.GetLogger()
	defer logger.Sync()

	client = detect.NewClient(*inferenceURL)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(utils.Cors())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "running", "model": *modelVersion})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "model_version": *modelVersion})
	})
	r.POST("/setup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"model_version": *modelVersion, "status": "ok"})
	})
	r.POST("/predict", predict)
	r.POST("/webhook", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	logger.Infof("label backend on :%d, inference at %s, root %s", *port, *inferenceURL, *documentRoot)
	utils.ListenAndServe(r, *port)
}

func predict(c *gin.Context) {
	var req predictRequest
	if err := c.Bind(&req); err != nil {
		return
	}
	fromName, toName, value := detect.ParseLabelConfig(req.LabelConfig)
	logger.Infof("received %d tasks", len(req.Tasks))

	results := make([]detect.Prediction, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		results = append(results, predictTask(c, t, fromName, toName, value))
	}

	c.JSON(http.StatusOK, predictResponse{Results: results})
}

func predictTask(c *gin.Context, t task, fromName, toName, value string) detect.Prediction {
	ref := t.Data[value]
	if ref == "" {
		logger.Warn("task without image reference")
		return detect.Prediction{Result: []detect.Region{}}
	}

	res, err := client.DetectFile(c.Request.Context(), resolveImage(ref))
	if err != nil {
		logger.Warnf("detect %s: %s", ref, err)
		return detect.Prediction{Result: []detect.Region{}}
	}

	regions := detect.ToRegions(res, fromName, toName, signalLabel)
	logger.Infof("%s: %d signals", ref, len(regions))

	return detect.Prediction{
		Result:       regions,
		Score:        detect.MeanScore(regions),
		ModelVersion: *modelVersion,
	}
}

// resolveImage maps a Label Studio image reference to a local path.
// The UI serves project files as /data/local-files/?d=<relative path>.
func resolveImage(ref string) string {
	if i := strings.Index(ref, "/data/local-files/?d="); i >= 0 {
		rel := ref[i+len("/data/local-files/?d="):]
		return filepath.Join(*documentRoot, filepath.FromSlash(rel))
	}
	return ref
}
