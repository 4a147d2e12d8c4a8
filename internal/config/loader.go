package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/transitwatch/verifier/internal/geo"
	"github.com/transitwatch/verifier/internal/types"
)

type YAMLStop struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	LineIDs   []string `yaml:"line_ids"`
}

type YAMLLine struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	StopIDs []string `yaml:"stop_ids"`
}

type YAMLData struct {
	Stops []YAMLStop `yaml:"stops"`
	Lines []YAMLLine `yaml:"lines"`
}

// Line is one transit line from the static network seed.
type Line struct {
	ID      string
	Name    string
	StopIDs []string
}

// NetworkData is the static stop/line topology used for segment
// inference and line lookups. Loaded once at startup, read-only after.
type NetworkData struct {
	stops   []geo.Stop
	stopsBy map[string]geo.Stop
	lines   map[string]Line
}

func LoadNetworkData(filePath string) (*NetworkData, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read network file: %w", err)
	}

	var yamlData YAMLData
	err = yaml.Unmarshal(data, &yamlData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	nd := &NetworkData{
		stops:   make([]geo.Stop, 0, len(yamlData.Stops)),
		stopsBy: make(map[string]geo.Stop, len(yamlData.Stops)),
		lines:   make(map[string]Line, len(yamlData.Lines)),
	}

	for _, ys := range yamlData.Stops {
		stop := geo.Stop{
			ID:   ys.ID,
			Name: ys.Name,
			Location: types.Location{
				Latitude:  ys.Latitude,
				Longitude: ys.Longitude,
			},
			LineIDs: ys.LineIDs,
		}
		nd.stops = append(nd.stops, stop)
		nd.stopsBy[stop.ID] = stop
	}

	for _, yl := range yamlData.Lines {
		for _, stopID := range yl.StopIDs {
			if _, ok := nd.stopsBy[stopID]; !ok {
				return nil, fmt.Errorf("line %s references unknown stop %s", yl.ID, stopID)
			}
		}
		nd.lines[yl.ID] = Line{ID: yl.ID, Name: yl.Name, StopIDs: yl.StopIDs}
	}

	return nd, nil
}

// Stops returns all stops in seed order.
func (nd *NetworkData) Stops() []geo.Stop {
	return nd.stops
}

func (nd *NetworkData) FindStopByID(id string) (*geo.Stop, error) {
	stop, exists := nd.stopsBy[id]
	if !exists {
		return nil, fmt.Errorf("stop not found")
	}
	return &stop, nil
}

func (nd *NetworkData) FindLineByID(id string) (*Line, error) {
	line, exists := nd.lines[id]
	if !exists {
		return nil, fmt.Errorf("line not found")
	}
	return &line, nil
}

// LinesForStops collects the union of line IDs served by the given
// stops, deduplicated, first occurrence order preserved.
func (nd *NetworkData) LinesForStops(stopIDs []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, stopID := range stopIDs {
		stop, ok := nd.stopsBy[stopID]
		if !ok {
			continue
		}
		for _, lineID := range stop.LineIDs {
			if _, ok := seen[lineID]; ok {
				continue
			}
			seen[lineID] = struct{}{}
			out = append(out, lineID)
		}
	}
	return out
}
