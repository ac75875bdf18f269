package tracking

import (
	"time"

	"backend-projectrun/internal/shared/geo"
)

// Derive fills distance and speed of cur from the previous fix of the same
// run. A zero or negative gap between fixes yields speed 0.
func Derive(prev *Position, cur Position) Position {
	cur.Distance = 0
	cur.Speed = 0
	if prev == nil {
		return cur
	}

	inc := geo.DistanceKm(point(*prev), point(cur))
	elapsed := int64(cur.DateTime.Sub(prev.DateTime) / time.Second)
	if elapsed > 0 {
		cur.Speed = geo.Round2(inc * 1000 / float64(elapsed))
	}
	cur.Distance = geo.Round2(prev.Distance + inc)
	return cur
}

// Aggregate computes run totals over positions in insertion order.
func Aggregate(positions []Position) Totals {
	if len(positions) == 0 {
		return Totals{}
	}

	points := make([]geo.Point, 0, len(positions))
	first, last := positions[0].DateTime, positions[0].DateTime
	speedSum := 0.0
	for _, p := range positions {
		points = append(points, point(p))
		if p.DateTime.Before(first) {
			first = p.DateTime
		}
		if p.DateTime.After(last) {
			last = p.DateTime
		}
		speedSum += p.Speed
	}

	return Totals{
		DistanceKm:     geo.TotalDistanceKm(points),
		ElapsedSeconds: int64(last.Sub(first) / time.Second),
		AverageSpeed:   geo.Round2(speedSum / float64(len(positions))),
	}
}

func point(p Position) geo.Point {
	return geo.Point{Lat: p.Latitude, Lng: p.Longitude}
}
