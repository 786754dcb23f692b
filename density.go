package main

const (
	// densityWindowSize bounds the smoothing window.
	densityWindowSize = 30
	// predictionSamples is how many of the newest samples feed the
	// short-horizon prediction.
	predictionSamples = 5
)

// densityWindow keeps the most recent density samples. Once full, the oldest
// sample is evicted on every push.
type densityWindow struct {
	samples []float64
}

func newDensityWindow() *densityWindow {
	return &densityWindow{samples: make([]float64, 0, densityWindowSize)}
}

// Push appends a sample, evicting the oldest past capacity.
func (w *densityWindow) Push(density float64) {
	if len(w.samples) == densityWindowSize {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:densityWindowSize-1]
	}
	w.samples = append(w.samples, density)
}

// Predicted returns the mean of the newest samples, or false until enough
// history has accumulated.
func (w *densityWindow) Predicted() (float64, bool) {
	if len(w.samples) < predictionSamples {
		return 0, false
	}
	var sum float64
	for _, d := range w.samples[len(w.samples)-predictionSamples:] {
		sum += d
	}
	return sum / predictionSamples, true
}

// Len returns the number of retained samples.
func (w *densityWindow) Len() int {
	return len(w.samples)
}

// Samples returns a copy of the retained samples, oldest first.
func (w *densityWindow) Samples() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

// Reset discards all samples.
func (w *densityWindow) Reset() {
	w.samples = w.samples[:0]
}

// computeDensity normalizes a people count by real-world area when one is
// configured, falling back to the ROI pixel area.
func computeDensity(peopleCount int, realWorldAreaM2 float64, roiPixelArea int) float64 {
	if realWorldAreaM2 > 0 {
		return float64(peopleCount) / realWorldAreaM2
	}
	if roiPixelArea > 0 {
		return float64(peopleCount) / float64(roiPixelArea)
	}
	return 0
}

// estimatePeople derives the occupancy estimate from configuration alone; the
// detected count does not factor in.
func estimatePeople(realWorldAreaM2, areaPerPersonM2, correctionFactor float64) int {
	if areaPerPersonM2 <= 0 {
		return 0
	}
	return int(realWorldAreaM2 / areaPerPersonM2 * correctionFactor)
}
