package geom

// Bucket is a labeled distance range used to group captures.
type Bucket string

const (
	Bucket10 Bucket = "10m"
	Bucket20 Bucket = "20m"
	Bucket30 Bucket = "30m"
	Bucket40 Bucket = "40m"
)

// Buckets lists all buckets nearest-first.
var Buckets = []Bucket{Bucket10, Bucket20, Bucket30, Bucket40}

// BucketOf maps a distance in meters to its bucket. Thresholds are
// inclusive, so a distance exactly on a boundary lands in the nearer
// bucket. ok is false when the distance is beyond the farthest range.
func BucketOf(distance float64) (b Bucket, ok bool) {
	switch {
	case distance <= 12:
		return Bucket10, true
	case distance <= 25:
		return Bucket20, true
	case distance <= 35:
		return Bucket30, true
	case distance <= 45:
		return Bucket40, true
	}
	return "", false
}
