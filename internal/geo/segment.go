package geo

import "github.com/transitwatch/verifier/internal/types"

type InferenceConfidence string

const (
	ConfidenceHigh   InferenceConfidence = "HIGH"
	ConfidenceMedium InferenceConfidence = "MEDIUM"
	ConfidenceLow    InferenceConfidence = "LOW"
)

func (c InferenceConfidence) downgrade() InferenceConfidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SegmentInference binds a reported location to the two nearest stops
// believed to bound it.
type SegmentInference struct {
	FromStop   Stop
	ToStop     Stop
	Confidence InferenceConfidence
}

const (
	segmentSearchRadiusM    = 2000.0
	segmentAvgDistanceM     = 200.0
	segmentOnLineToleranceM = 150.0
)

// InferSegment finds the two nearest stops around point and grades the
// inference. Confidence starts HIGH when the average stop distance is
// under 200m and the point lies on the segment; each failed check
// downgrades one level, floor LOW. Returns nil when fewer than two stops
// are in range.
func InferSegment(point types.Location, stops []Stop) *SegmentInference {
	nearest := NearestStops(point, stops, segmentSearchRadiusM)
	if len(nearest) < 2 {
		return nil
	}

	from, to := nearest[0], nearest[1]
	confidence := ConfidenceHigh

	avg := (from.DistanceM + to.DistanceM) / 2
	if avg >= segmentAvgDistanceM {
		confidence = confidence.downgrade()
	}
	if !IsBetween(point, from.Stop.Location, to.Stop.Location, segmentOnLineToleranceM) {
		confidence = confidence.downgrade()
	}

	return &SegmentInference{
		FromStop:   from.Stop,
		ToStop:     to.Stop,
		Confidence: confidence,
	}
}
