package geo

import (
	"math"
	"testing"
)

func TestBearingAndDistance(t *testing.T) {
	a := Point{Lat: 48, Lon: 2}
	b := Point{Lat: 49, Lon: 2}
	bearing, dist := a.BearingAndDistance(b)
	if math.Abs(bearing) > 0.01 && math.Abs(bearing-360) > 0.01 {
		t.Fatalf("expected northbound bearing, got %f", bearing)
	}
	if math.Abs(dist-60) > 0.5 {
		t.Fatalf("expected ~60nm, got %f", dist)
	}
	back, _ := b.BearingAndDistance(a)
	if math.Abs(back-180) > 0.01 {
		t.Fatalf("expected southbound bearing, got %f", back)
	}
}

func TestDistanceToSegment(t *testing.T) {
	a := Point{Lat: 48, Lon: 2}
	b := Point{Lat: 49, Lon: 2}
	p := Point{Lat: 48.5, Lon: 2.02}

	d := p.DistanceToSegment(a, b)
	if math.Abs(d-0.8) > 0.05 {
		t.Fatalf("expected ~0.8nm, got %f", d)
	}
	along := p.AlongTrackDistance(a, b)
	if math.Abs(along-30) > 0.5 {
		t.Fatalf("expected ~30nm along track, got %f", along)
	}
}

func TestDistanceToSegmentBeyondEndpoints(t *testing.T) {
	a := Point{Lat: 48, Lon: 2}
	b := Point{Lat: 49, Lon: 2}
	south := Point{Lat: 47.5, Lon: 2}
	if d := south.DistanceToSegment(a, b); math.Abs(d-south.DistanceNM(a)) > 1e-9 {
		t.Fatalf("expected distance to start point, got %f", d)
	}
	if along := south.AlongTrackDistance(a, b); along >= 0 {
		t.Fatalf("expected negative along-track, got %f", along)
	}
	north := Point{Lat: 49.5, Lon: 2.1}
	if d := north.DistanceToSegment(a, b); math.Abs(d-north.DistanceNM(b)) > 1e-9 {
		t.Fatalf("expected distance to end point, got %f", d)
	}
	if d := north.DistanceToSegment(a, a); math.Abs(d-north.DistanceNM(a)) > 1e-9 {
		t.Fatalf("degenerate segment should use direct distance")
	}
}
