package camera

import "github.com/go-gl/mathgl/mgl32"

// Controller owns the camera's positional state. The camera reads from the controller and computes
// its View. It combines orbit controls around a pivot with planar pans along the camera axes, which
// is enough to script fly-throughs for the headless driver.
type Controller interface {
	// Position returns the camera's position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: the pivot position
	Target() mgl32.Vec3

	// SetTarget sets the pivot and recomputes the position from the orbit angles.
	SetTarget(target mgl32.Vec3)

	// Zoom moves the eye toward the pivot. Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// Orbit rotates the eye around the pivot. Elevation is clamped to its bounds.
	//
	// Parameters:
	//   - dAzimuth: change of the horizontal angle in radians
	//   - dElevation: change of the vertical angle in radians
	Orbit(dAzimuth, dElevation float32)

	// Pan translates eye and pivot together along the camera's right, up and forward axes.
	//
	// Parameters:
	//   - right, up, forward: distances scaled by the pan speed
	Pan(right, up, forward float32)

	// Radius returns the current distance from the pivot.
	Radius() float32

	// SetRadius sets the distance from the pivot, clamped to its bounds.
	SetRadius(radius float32)

	// Azimuth returns the horizontal angle around the Y axis.
	Azimuth() float32

	// Elevation returns the vertical angle from the horizontal plane.
	Elevation() float32
}
