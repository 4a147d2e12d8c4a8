package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitwatch/verifier/internal/types"
)

func TestDistance(t *testing.T) {
	// Berlin Hauptbahnhof to Alexanderplatz, roughly 3km
	hbf := types.Location{Latitude: 52.5251, Longitude: 13.3694}
	alex := types.Location{Latitude: 52.5219, Longitude: 13.4132}

	d := Distance(hbf, alex)
	assert.InDelta(t, 2990, d, 150)

	assert.Zero(t, Distance(hbf, hbf))
	assert.InDelta(t, Distance(hbf, alex), Distance(alex, hbf), 0.001)
}

func TestNearestStops(t *testing.T) {
	point := types.Location{Latitude: 52.52, Longitude: 13.40}
	stops := []Stop{
		{ID: "far", Location: types.Location{Latitude: 52.60, Longitude: 13.50}},
		{ID: "near", Location: types.Location{Latitude: 52.5205, Longitude: 13.4010}},
		{ID: "mid", Location: types.Location{Latitude: 52.5250, Longitude: 13.4100}},
	}

	got := NearestStops(point, stops, 2000)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Stop.ID)
	assert.Equal(t, "mid", got[1].Stop.ID)
	assert.Less(t, got[0].DistanceM, got[1].DistanceM)
}

func TestIsBetween(t *testing.T) {
	a := types.Location{Latitude: 52.52, Longitude: 13.40}
	b := types.Location{Latitude: 52.52, Longitude: 13.42}

	onSegment := types.Location{Latitude: 52.52, Longitude: 13.41}
	assert.True(t, IsBetween(onSegment, a, b, 50))

	offSegment := types.Location{Latitude: 52.53, Longitude: 13.41} // ~1.1km north
	assert.False(t, IsBetween(offSegment, a, b, 500))

	// beyond the endpoint: distance is to the endpoint, not the infinite line
	past := types.Location{Latitude: 52.52, Longitude: 13.45}
	assert.False(t, IsBetween(past, a, b, 500))
}

func TestBoxAround(t *testing.T) {
	center := types.Location{Latitude: 52.52, Longitude: 13.40}
	box := BoxAround(center, 0.5)

	assert.True(t, box.Contains(center))
	assert.True(t, box.Contains(types.Location{Latitude: 52.523, Longitude: 13.403}))
	assert.False(t, box.Contains(types.Location{Latitude: 52.53, Longitude: 13.40}))

	// longitude span must widen with latitude
	northern := BoxAround(types.Location{Latitude: 65, Longitude: 13.40}, 0.5)
	assert.Greater(t, northern.MaxLng-northern.MinLng, box.MaxLng-box.MinLng)
}

func TestInferSegment(t *testing.T) {
	stops := []Stop{
		{ID: "a", Location: types.Location{Latitude: 52.5200, Longitude: 13.4000}},
		{ID: "b", Location: types.Location{Latitude: 52.5200, Longitude: 13.4030}},
		{ID: "c", Location: types.Location{Latitude: 52.5400, Longitude: 13.4500}},
	}

	// midpoint of a-b, well within 200m of both
	mid := types.Location{Latitude: 52.5200, Longitude: 13.4015}
	inf := InferSegment(mid, stops)
	require.NotNil(t, inf)
	assert.Equal(t, ConfidenceHigh, inf.Confidence)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{inf.FromStop.ID, inf.ToStop.ID})

	// long segment: on the line but far from both stops, one downgrade
	longStops := []Stop{
		{ID: "a", Location: types.Location{Latitude: 52.5200, Longitude: 13.4000}},
		{ID: "d", Location: types.Location{Latitude: 52.5200, Longitude: 13.4120}},
	}
	farMid := types.Location{Latitude: 52.5200, Longitude: 13.4060}
	inf = InferSegment(farMid, longStops)
	require.NotNil(t, inf)
	assert.Equal(t, ConfidenceMedium, inf.Confidence)

	// offset ~300m perpendicular: fails both checks, floor LOW
	off := types.Location{Latitude: 52.5227, Longitude: 13.4015}
	inf = InferSegment(off, stops)
	require.NotNil(t, inf)
	assert.Equal(t, ConfidenceLow, inf.Confidence)

	// nowhere near two stops
	assert.Nil(t, InferSegment(types.Location{Latitude: 50.0, Longitude: 10.0}, stops))
}
