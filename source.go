package main

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// frameSource is an exclusive handle over a decoded video stream. Exactly one
// source is open per feed at a time; opening a new one releases the previous
// handle first.
type frameSource interface {
	Read(dst *gocv.Mat) bool
	IsOpened() bool
	Close() error
}

// sourceOpener opens a source and reports its frame dimensions. The registry
// holds one so tests can substitute synthetic sources.
type sourceOpener func(sourceType, sourcePath string) (frameSource, int, int, error)

// openVideoSource opens a webcam by device index, or any path or URL OpenCV
// can decode (file, RTSP).
func openVideoSource(sourceType, sourcePath string) (frameSource, int, int, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if sourceType == "webcam" {
		device, convErr := strconv.Atoi(sourcePath)
		if convErr != nil {
			return nil, 0, 0, fmt.Errorf("invalid webcam device %q: %w", sourcePath, convErr)
		}
		vc, err = gocv.OpenVideoCapture(device)
	} else {
		vc, err = gocv.VideoCaptureFile(sourcePath)
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open video source %q: %w", sourcePath, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, 0, 0, fmt.Errorf("video source %q did not open", sourcePath)
	}

	width := int(vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(vc.Get(gocv.VideoCaptureFrameHeight))
	return vc, width, height, nil
}
