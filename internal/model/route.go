package model

import (
	"math"
	"sort"

	"euroaip/pkg/domain"
	"euroaip/pkg/geo"
)

// RouteMatch is an airport found near a route.
type RouteMatch struct {
	Airport           domain.Airport
	SegmentDistanceNM float64
	// ClosestSegment holds the waypoint indexes of the nearest leg. A
	// single-waypoint route reports {0, 0}.
	ClosestSegment [2]int
	// AlongTrackNM is the distance from the first waypoint to the point on
	// the route abeam the airport.
	AlongTrackNM float64
}

// FindAirportsNearRoute returns the airports within maxNM of the route through
// waypoints, nearest first. Airports without coordinates are ignored.
func (m *Model) FindAirportsNearRoute(waypoints []geo.Point, maxNM float64) []RouteMatch {
	if len(waypoints) == 0 {
		return nil
	}
	legs := make([]float64, len(waypoints))
	for i := 1; i < len(waypoints); i++ {
		legs[i] = legs[i-1] + waypoints[i-1].DistanceNM(waypoints[i])
	}

	var matches []RouteMatch
	for _, code := range m.codes() {
		a := m.state.airports[code]
		if !a.HasCoordinates() {
			continue
		}
		p := geo.Point{Lat: *a.Latitude, Lon: *a.Longitude}
		match := RouteMatch{SegmentDistanceNM: math.Inf(1)}
		if len(waypoints) == 1 {
			match.SegmentDistanceNM = p.DistanceNM(waypoints[0])
		}
		for i := 0; i+1 < len(waypoints); i++ {
			from, to := waypoints[i], waypoints[i+1]
			d := p.DistanceToSegment(from, to)
			if d >= match.SegmentDistanceNM {
				continue
			}
			along := p.AlongTrackDistance(from, to)
			along = math.Max(0, math.Min(along, legs[i+1]-legs[i]))
			match.SegmentDistanceNM = d
			match.ClosestSegment = [2]int{i, i + 1}
			match.AlongTrackNM = legs[i] + along
		}
		if match.SegmentDistanceNM <= maxNM {
			match.Airport = domain.CloneAirport(a)
			matches = append(matches, match)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SegmentDistanceNM < matches[j].SegmentDistanceNM
	})
	return matches
}
