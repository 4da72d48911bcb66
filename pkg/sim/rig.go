package sim

// Camera rig mirroring the collection vehicle's sensor suite: two
// co-located front cameras with different framing (the pair the dataset
// is built from), plus diagonal, side and rear cameras for feed
// recordings.

const (
	DefaultImageWidth  = 1920
	DefaultImageHeight = 1080
)

func FrontNarrow() CameraSpec {
	return CameraSpec{
		Name:   "front_narrow",
		Mount:  Location{X: 2.5, Z: 1.0},
		Aim:    Rotation{Pitch: -10},
		FOV:    50,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
	}
}

func FrontWide() CameraSpec {
	return CameraSpec{
		Name:   "front_wide",
		Mount:  Location{X: 2.5, Z: 1.0},
		Aim:    Rotation{Pitch: -10},
		FOV:    120,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
	}
}

func LeftFront() CameraSpec {
	return CameraSpec{
		Name:   "left_front",
		Mount:  Location{X: 2.0, Y: -0.8, Z: 1.2},
		Aim:    Rotation{Yaw: -45},
		FOV:    60,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
	}
}

func RightFront() CameraSpec {
	return CameraSpec{
		Name:   "right_front",
		Mount:  Location{X: 2.0, Y: 0.8, Z: 1.2},
		Aim:    Rotation{Yaw: 45},
		FOV:    60,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
	}
}

func LeftSide() CameraSpec {
	return CameraSpec{
		Name:   "left_side",
		Mount:  Location{Y: -1.0, Z: 1.2},
		Aim:    Rotation{Yaw: -90},
		FOV:    90,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
	}
}

func RightSide() CameraSpec {
	return CameraSpec{
		Name:   "right_side",
		Mount:  Location{Y: 1.0, Z: 1.2},
		Aim:    Rotation{Yaw: 90},
		FOV:    90,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
	}
}

func Rear() CameraSpec {
	return CameraSpec{
		Name:   "rear",
		Mount:  Location{X: -2.0, Z: 1.2},
		Aim:    Rotation{Pitch: -10, Yaw: 180},
		FOV:    120,
		Width:  DefaultImageWidth,
		Height: DefaultImageHeight,
	}
}

// RigSpecs lists every camera of the suite, front pair first.
func RigSpecs() []CameraSpec {
	return []CameraSpec{
		FrontNarrow(), FrontWide(),
		LeftFront(), RightFront(),
		LeftSide(), RightSide(),
		Rear(),
	}
}

// SpecByName returns the rig camera with the given name.
func SpecByName(name string) (CameraSpec, bool) {
	for _, spec := range RigSpecs() {
		if spec.Name == name {
			return spec, true
		}
	}
	return CameraSpec{}, false
}
