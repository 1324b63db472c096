// Package geo provides the great-circle primitives used for route proximity,
// expressed in degrees and nautical miles on top of orb's geodesy.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// MetersPerNauticalMile converts orb's meter distances.
const MetersPerNauticalMile = 1852.0

// Point is a WGS84 position in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) orb() orb.Point { return orb.Point{p.Lon, p.Lat} }

// DistanceNM returns the great-circle distance to o in nautical miles.
func (p Point) DistanceNM(o Point) float64 {
	return orbgeo.Distance(p.orb(), o.orb()) / MetersPerNauticalMile
}

// BearingAndDistance returns the initial true bearing in [0, 360) and the
// great-circle distance in nautical miles from p to o.
func (p Point) BearingAndDistance(o Point) (float64, float64) {
	bearing := math.Mod(orbgeo.Bearing(p.orb(), o.orb())+360, 360)
	return bearing, p.DistanceNM(o)
}

// crossAlong returns the signed cross-track and the along-track distance of p
// relative to the great circle through a and b, both in meters.
func (p Point) crossAlong(a, b Point) (float64, float64) {
	d13 := orbgeo.Distance(a.orb(), p.orb()) / orb.EarthRadius
	theta13 := deg2rad(orbgeo.Bearing(a.orb(), p.orb()))
	theta12 := deg2rad(orbgeo.Bearing(a.orb(), b.orb()))

	dxt := math.Asin(math.Sin(d13) * math.Sin(theta13-theta12))
	cosRatio := math.Cos(d13) / math.Cos(dxt)
	cosRatio = math.Max(-1, math.Min(1, cosRatio))
	dat := math.Acos(cosRatio)
	if math.Cos(theta13-theta12) < 0 {
		dat = -dat
	}
	return dxt * orb.EarthRadius, dat * orb.EarthRadius
}

// AlongTrackDistance returns how far along the a->b track the projection of
// p falls, in nautical miles. Negative values lie behind a.
func (p Point) AlongTrackDistance(a, b Point) float64 {
	_, along := p.crossAlong(a, b)
	return along / MetersPerNauticalMile
}

// DistanceToSegment returns the shortest distance in nautical miles from p to
// the great-circle segment a->b. Projections falling outside the segment are
// measured to the nearest endpoint.
func (p Point) DistanceToSegment(a, b Point) float64 {
	if a == b {
		return p.DistanceNM(a)
	}
	cross, along := p.crossAlong(a, b)
	segment := orbgeo.Distance(a.orb(), b.orb())
	switch {
	case along < 0:
		return p.DistanceNM(a)
	case along > segment:
		return p.DistanceNM(b)
	}
	return math.Abs(cross) / MetersPerNauticalMile
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
