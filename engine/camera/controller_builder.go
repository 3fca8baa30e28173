package camera

import "github.com/go-gl/mathgl/mgl32"

// ControllerBuilderOption is a functional option for configuring a Controller.
type ControllerBuilderOption func(*controllerImpl)

// WithRadius sets the initial orbit radius (distance from target).
//
// Parameters:
//   - radius: distance from the orbit target
//
// Returns:
//   - ControllerBuilderOption: functional option to set the radius
func WithRadius(radius float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle around the Y axis.
func WithAzimuth(azimuth float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle from the horizontal plane.
func WithElevation(elevation float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.elevation = elevation
	}
}

// WithTarget sets the look-at/pivot point.
//
// Parameters:
//   - target: the pivot position
//
// Returns:
//   - ControllerBuilderOption: functional option to set the target position
func WithTarget(target mgl32.Vec3) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.target = target
	}
}

// WithRadiusBounds sets the zoom limits.
func WithRadiusBounds(min, max float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		if min > 0 && max >= min {
			cc.minRadius, cc.maxRadius = min, max
		}
	}
}

// WithElevationBounds sets the vertical angle limits in radians.
func WithElevationBounds(min, max float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		if max >= min {
			cc.minElevation, cc.maxElevation = min, max
		}
	}
}

// WithZoomSpeed sets the zoom multiplier.
func WithZoomSpeed(speed float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.zoomSpeed = speed
	}
}

// WithPanSpeed sets the pan multiplier.
func WithPanSpeed(speed float32) ControllerBuilderOption {
	return func(cc *controllerImpl) {
		cc.panSpeed = speed
	}
}
