package main

// ROI is a pixel rectangle inside a frame, derived from percentage inputs.
// The mapping performs no bounds validation, so the rectangle may extend past
// the frame edges; a zero width or height marks it unusable.
type ROI struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// computeROI converts percentage coordinates into pixels against a frame size.
// Each value is floor(pct * dimension / 100).
func computeROI(xPct, yPct, wPct, hPct float64, frameWidth, frameHeight int) ROI {
	return ROI{
		X: int(xPct * float64(frameWidth) / 100),
		Y: int(yPct * float64(frameHeight) / 100),
		W: int(wPct * float64(frameWidth) / 100),
		H: int(hPct * float64(frameHeight) / 100),
	}
}

// Valid reports whether the rectangle has usable area.
func (r ROI) Valid() bool {
	return r.W > 0 && r.H > 0
}

// PixelArea is the raw pixel area, used as the density denominator when no
// real-world area is configured.
func (r ROI) PixelArea() int {
	return r.W * r.H
}
