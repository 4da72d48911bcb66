package detect

import (
	"fmt"
	"regexp"
)

// Label Studio ML-backend payload shapes. Only the fields the annotation
// UI actually consumes are modeled.

type Region struct {
	ID             string      `json:"id"`
	OriginalWidth  int         `json:"original_width"`
	OriginalHeight int         `json:"original_height"`
	ImageRotation  int         `json:"image_rotation"`
	Value          RegionValue `json:"value"`
	Score          float64     `json:"score"`
	FromName       string      `json:"from_name"`
	ToName         string      `json:"to_name"`
	Type           string      `json:"type"`
}

type RegionValue struct {
	X               float64  `json:"x"`
	Y               float64  `json:"y"`
	Width           float64  `json:"width"`
	Height          float64  `json:"height"`
	Rotation        int      `json:"rotation"`
	RectangleLabels []string `json:"rectanglelabels"`
}

type Prediction struct {
	Result       []Region `json:"result"`
	Score        float64  `json:"score"`
	ModelVersion string   `json:"model_version,omitempty"`
}

// ToRegions converts pixel-space detections into Label Studio regions,
// which use percentages of the image dimensions.
func ToRegions(res *Result, fromName, toName, label string) []Region {
	if res.Width <= 0 || res.Height <= 0 {
		return nil
	}
	w := float64(res.Width)
	h := float64(res.Height)

	regions := make([]Region, 0, len(res.Boxes))
	for i, b := range res.Boxes {
		regions = append(regions, Region{
			ID:             fmt.Sprintf("result_%d", i),
			OriginalWidth:  res.Width,
			OriginalHeight: res.Height,
			Value: RegionValue{
				X:               b.X1 / w * 100,
				Y:               b.Y1 / h * 100,
				Width:           (b.X2 - b.X1) / w * 100,
				Height:          (b.Y2 - b.Y1) / h * 100,
				RectangleLabels: []string{label},
			},
			Score:    b.Score,
			FromName: fromName,
			ToName:   toName,
			Type:     "rectanglelabels",
		})
	}

	return regions
}

// MeanScore averages the region confidences; zero when there are none.
func MeanScore(regions []Region) float64 {
	if len(regions) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range regions {
		sum += r.Score
	}
	return sum / float64(len(regions))
}

var (
	rectRe = regexp.MustCompile(`<RectangleLabels\s+name="([^"]+)"\s+toName="([^"]+)"`)
	imgRe  = regexp.MustCompile(`<Image\s+name="[^"]+"\s+value="\$([^"]+)"`)
)

// ParseLabelConfig pulls the control and image tag names out of a Label
// Studio labeling config, falling back to the conventional defaults.
func ParseLabelConfig(cfg string) (fromName, toName, value string) {
	fromName, toName, value = "label", "image", "image"
	if m := rectRe.FindStringSubmatch(cfg); m != nil {
		fromName, toName = m[1], m[2]
	}
	if m := imgRe.FindStringSubmatch(cfg); m != nil {
		value = m[1]
	}
	return
}
