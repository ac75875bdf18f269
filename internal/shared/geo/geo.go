// Package geo computes distances between latitude/longitude pairs.
package geo

import (
	"errors"
	"math"
)

// WGS-84 ellipsoid.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	semiMinorAxis = (1 - flattening) * semiMajorAxis

	earthRadiusKm = 6371.0

	// halfMeridianM is the pole-to-pole length along a meridian, the
	// ellipsoidal distance between two antipodal points.
	halfMeridianM = 20003931.46

	vincentyIterations = 200
	vincentyTolerance  = 1e-12
)

var ErrOutOfRange = errors.New("coordinates out of range")

type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies within [-90,90] x [-180,180].
func Valid(p Point) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return ErrOutOfRange
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrOutOfRange
	}
	return nil
}

// DistanceKm returns the geodesic distance between two points on the WGS-84
// ellipsoid in kilometers, rounded to 2 decimals.
func DistanceKm(p1, p2 Point) float64 {
	return Round2(distanceMeters(p1, p2) / 1000)
}

// TotalDistanceKm sums DistanceKm over consecutive points.
func TotalDistanceKm(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += distanceMeters(points[i-1], points[i]) / 1000
	}
	return Round2(total)
}

// HaversineKm is the spherical great-circle distance in kilometers, unrounded.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// distanceMeters solves the inverse geodesic problem with Vincenty's formulae.
// Nearly antipodal points may not converge. Those use the spherical distance
// rescaled so that an exact antipode maps to the half meridian.
func distanceMeters(p1, p2 Point) float64 {
	if p1 == p2 {
		return 0
	}

	L := toRadians(p2.Lng - p1.Lng)
	U1 := math.Atan((1 - flattening) * math.Tan(toRadians(p1.Lat)))
	U2 := math.Atan((1 - flattening) * math.Tan(toRadians(p2.Lat)))
	sinU1, cosU1 := math.Sin(U1), math.Cos(U1)
	sinU2, cosU2 := math.Sin(U2), math.Cos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64
	converged := false
	for i := 0; i < vincentyIterations; i++ {
		sinLambda, cosLambda := math.Sin(lambda), math.Cos(lambda)
		sinSigma = math.Sqrt(math.Pow(cosU2*sinLambda, 2) +
			math.Pow(cosU1*sinU2-sinU1*cosU2*cosLambda, 2))
		if sinSigma == 0 {
			return 0
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		cos2SigmaM = 0
		if cosSqAlpha != 0 {
			// equatorial lines have cosSqAlpha == 0
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		}
		C := flattening / 16 * cosSqAlpha * (4 + flattening*(4-3*cosSqAlpha))
		prev := lambda
		lambda = L + (1-C)*flattening*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) < vincentyTolerance {
			converged = true
			break
		}
	}
	if !converged {
		return HaversineKm(p1.Lat, p1.Lng, p2.Lat, p2.Lng) / (math.Pi * earthRadiusKm) * halfMeridianM
	}

	uSq := cosSqAlpha * (semiMajorAxis*semiMajorAxis - semiMinorAxis*semiMinorAxis) / (semiMinorAxis * semiMinorAxis)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))
	return semiMinorAxis * A * (sigma - deltaSigma)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
