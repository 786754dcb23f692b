package main

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Detection is one candidate head returned by a detector, with its bounding
// box in coordinates local to the image it was given.
type Detection struct {
	Box        image.Rectangle
	Confidence float64
}

// Detector is an opaque detection capability. Implementations may be stateful;
// callers treat any failure as an empty result.
type Detector interface {
	Detect(img gocv.Mat) ([]Detection, error)
	Close() error
}

// headDetector runs a head-detection network through OpenCV's DNN module. The
// network is loaded once at startup and shared across all feeds, with forward
// passes serialized by a mutex.
type headDetector struct {
	net gocv.Net
	mu  sync.Mutex
}

// newHeadDetector loads the model weights and config from disk.
func newHeadDetector(weightsPath, configPath string) (*headDetector, error) {
	net := gocv.ReadNet(weightsPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load detection model from %s", weightsPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &headDetector{net: net}, nil
}

// Detect runs one forward pass over the input image. The input is expected to
// be RGB with both sides a multiple of 32; output rows are
// [cx cy w h conf ...] in input pixels.
func (d *headDetector) Detect(img gocv.Mat) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img.Empty() {
		return nil, fmt.Errorf("empty input image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(img.Cols(), img.Rows()),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	var detections []Detection
	for i := 0; i < output.Rows(); i++ {
		cx := float64(output.GetFloatAt(i, 0))
		cy := float64(output.GetFloatAt(i, 1))
		w := float64(output.GetFloatAt(i, 2))
		h := float64(output.GetFloatAt(i, 3))
		conf := float64(output.GetFloatAt(i, 4))

		left := int(cx - w/2)
		top := int(cy - h/2)
		detections = append(detections, Detection{
			Box:        image.Rect(left, top, left+int(w), top+int(h)),
			Confidence: conf,
		})
	}

	return detections, nil
}

// Close releases the network.
func (d *headDetector) Close() error {
	return d.net.Close()
}
