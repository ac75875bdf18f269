package geo

import (
	"errors"
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestDistanceKm(t *testing.T) {
	cases := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{"moscow block", Point{55.75, 37.61}, Point{55.76, 37.62}, 1.28},
		{"equator degree", Point{0, 0}, Point{0, 1}, 111.32},
		{"jakarta bandung", Point{-6.2, 106.816}, Point{-6.9175, 107.6191}, 119.10},
		{"same point", Point{10, 10}, Point{10, 10}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceKm(tc.p1, tc.p2)
			if got != tc.want {
				t.Fatalf("DistanceKm(%v, %v) = %v, want %v", tc.p1, tc.p2, got, tc.want)
			}
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := Point{55.75, 37.61}
	b := Point{48.85, 2.35}
	if DistanceKm(a, b) != DistanceKm(b, a) {
		t.Fatalf("expected symmetric distance")
	}
}

func TestDistanceKmAntipodalFallback(t *testing.T) {
	d := DistanceKm(Point{0, 0}, Point{0.5, 179.7})
	if d < 19000 || d > 20100 {
		t.Fatalf("unexpected antipodal distance: %v", d)
	}
}

func TestDistanceKmAntipodeIsHalfMeridian(t *testing.T) {
	cases := [][2]Point{
		{{0, 0}, {0, 180}},
		{{0, 0}, {0, -180}},
		{{0, 90}, {0, -90}},
	}
	for _, c := range cases {
		if got := DistanceKm(c[0], c[1]); got != 20003.93 {
			t.Fatalf("%v -> %v: got %v want 20003.93", c[0], c[1], got)
		}
	}
}

func TestTotalDistanceKm(t *testing.T) {
	if got := TotalDistanceKm(nil); got != 0 {
		t.Fatalf("expected 0 for empty, got %v", got)
	}
	if got := TotalDistanceKm([]Point{{55.75, 37.61}}); got != 0 {
		t.Fatalf("expected 0 for single point, got %v", got)
	}

	points := []Point{{55.75, 37.61}, {55.77, 37.61}, {55.79, 37.61}}
	got := TotalDistanceKm(points)
	if got != 4.45 {
		t.Fatalf("unexpected total: %v", got)
	}
}

func TestValid(t *testing.T) {
	if err := Valid(Point{90, -180}); err != nil {
		t.Fatalf("expected valid bounds: %v", err)
	}
	for _, p := range []Point{{90.1, 0}, {-91, 0}, {0, 180.5}, {0, -181}, {math.NaN(), 0}} {
		if err := Valid(p); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("expected out of range for %v", p)
		}
	}
}

func TestRound2(t *testing.T) {
	if Round2(1.005000001) != 1.01 || Round2(10.666) != 10.67 || Round2(0) != 0 {
		t.Fatalf("unexpected rounding")
	}
}
