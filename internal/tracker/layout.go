package tracker

import (
	"sort"
	"strings"

	"svrlive.org/internal/timetable"
)

// DefaultColor is used for a train number missing from the palette.
const DefaultColor = "#888888"

var paletteColors = []string{
	"#ff6b6b", "#4ecdc4", "#45b7d1", "#96ceb4", "#ffeaa7",
	"#fd79a8", "#fdcb6e", "#6c5ce7", "#a29bfe", "#74b9ff",
}

// Palette maps train numbers to display colours.
type Palette map[string]string

// NewPalette assigns colours by alphabetical order of the distinct numbers,
// cycling when there are more numbers than colours.
func NewPalette(numbers []string) Palette {
	sorted := append([]string(nil), numbers...)
	sort.Strings(sorted)
	p := make(Palette, len(sorted))
	i := 0
	for _, n := range sorted {
		if _, ok := p[n]; ok {
			continue
		}
		p[n] = paletteColors[i%len(paletteColors)]
		i++
	}
	return p
}

// Color returns the colour for trainNumber.
func (p Palette) Color(trainNumber string) string {
	if c, ok := p[trainNumber]; ok {
		return c
	}
	return DefaultColor
}

// Icon picks a glyph from the train number text.
func Icon(trainNumber string) string {
	switch {
	case strings.Contains(trainNumber, "Steam"):
		return "🚂"
	case strings.Contains(trainNumber, "DMU"):
		return "🚃"
	}
	return "🚆"
}

// StationMarkerPercent places trains standing at a station mid-cell.
const StationMarkerPercent = 50.0

// Marker is one train token on the board.
type Marker struct {
	TrainNumber string              `json:"trainNumber"`
	Direction   timetable.Direction `json:"direction"`
	Color       string              `json:"color"`
	Icon        string              `json:"icon"`
	Percent     float64             `json:"percent"`
}

// StationCell is a station row and the trains standing at it.
type StationCell struct {
	Station  string   `json:"station"`
	Terminus bool     `json:"terminus"`
	Trains   []Marker `json:"trains"`
}

// Segment is the track between two adjacent stations on the axis.
type Segment struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Trains []Marker `json:"trains"`
}

// Board is the projection of resolved positions onto the station axis.
type Board struct {
	Stations []StationCell `json:"stations"`
	Segments []Segment     `json:"segments"`
}

// Layout projects actives onto topo. Between positions are measured in the
// service's own direction, so northbound progress is inverted against the
// axis.
func Layout(topo timetable.Topology, palette Palette, actives []Active) Board {
	board := Board{
		Stations: make([]StationCell, len(topo)),
		Segments: make([]Segment, 0, max(len(topo)-1, 0)),
	}

	for i, station := range topo {
		cell := StationCell{Station: station, Terminus: topo.IsTerminus(station), Trains: []Marker{}}
		for _, a := range actives {
			if a.Position.Kind == AtStation && a.Position.Station == station {
				cell.Trains = append(cell.Trains, marker(palette, a, StationMarkerPercent))
			}
		}
		board.Stations[i] = cell
	}

	for i := 0; i+1 < len(topo); i++ {
		seg := Segment{From: topo[i], To: topo[i+1], Trains: []Marker{}}
		for _, a := range actives {
			if a.Position.Kind != Between {
				continue
			}
			switch {
			case a.Service.Direction == timetable.Southbound &&
				a.Position.FromStation == topo[i] && a.Position.ToStation == topo[i+1]:
				seg.Trains = append(seg.Trains, marker(palette, a, a.Position.Progress*100))
			case a.Service.Direction == timetable.Northbound &&
				a.Position.FromStation == topo[i+1] && a.Position.ToStation == topo[i]:
				seg.Trains = append(seg.Trains, marker(palette, a, (1-a.Position.Progress)*100))
			}
		}
		board.Segments = append(board.Segments, seg)
	}
	return board
}

func marker(palette Palette, a Active, percent float64) Marker {
	n := a.Service.TrainNumber
	return Marker{
		TrainNumber: n,
		Direction:   a.Service.Direction,
		Color:       palette.Color(n),
		Icon:        Icon(n),
		Percent:     percent,
	}
}
