package main

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// alertColor maps a level onto the overlay palette: green for normal, orange
// for warnings, red for critical, purple for super critical.
func alertColor(level string) color.RGBA {
	switch level {
	case AlertSuperCritical:
		return color.RGBA{R: 128, B: 128, A: 255}
	case AlertCritical:
		return color.RGBA{R: 255, A: 255}
	case AlertWarning:
		return color.RGBA{R: 255, G: 165, A: 255}
	default:
		return color.RGBA{G: 255, A: 255}
	}
}

// annotation carries everything the renderer needs for one processed frame.
type annotation struct {
	ROI              ROI
	Centers          []image.Point
	PeopleCount      int
	Density          float64
	RealWorldDensity bool
	PredictedDensity *float64
	AlertLevel       string
	EstimatedPeople  int
}

// drawAnnotations renders the ROI box, a center dot per detection, and the
// stats readout onto the display frame.
func drawAnnotations(frame *gocv.Mat, a annotation) {
	c := alertColor(a.AlertLevel)
	rect := image.Rect(a.ROI.X, a.ROI.Y, a.ROI.X+a.ROI.W, a.ROI.Y+a.ROI.H)
	gocv.Rectangle(frame, rect, c, 2)

	for _, pt := range a.Centers {
		gocv.Circle(frame, pt, 5, color.RGBA{R: 255, A: 255}, -1)
	}

	densityText := fmt.Sprintf("Density:%.4f", a.Density)
	if a.RealWorldDensity {
		densityText += " people/m^2"
	}
	predText := "Pred:N/A"
	if a.PredictedDensity != nil {
		predText = fmt.Sprintf("Pred:%.4f", *a.PredictedDensity)
	}

	gocv.PutText(frame, fmt.Sprintf("Count:%d", a.PeopleCount),
		image.Pt(a.ROI.X+5, a.ROI.Y+20), gocv.FontHersheySimplex, 0.6, c, 2)
	gocv.PutText(frame, densityText,
		image.Pt(a.ROI.X+5, a.ROI.Y+45), gocv.FontHersheySimplex, 0.6, c, 2)
	gocv.PutText(frame, predText,
		image.Pt(a.ROI.X+5, a.ROI.Y+70), gocv.FontHersheySimplex, 0.6, c, 2)
	gocv.PutText(frame, "Alert:"+a.AlertLevel,
		image.Pt(a.ROI.X+5, a.ROI.Y+95), gocv.FontHersheySimplex, 0.6, c, 2)

	estColor := color.RGBA{G: 255, B: 255, A: 255}
	if a.AlertLevel == AlertSuperCritical {
		estColor = color.RGBA{R: 128, B: 128, A: 255}
	}
	gocv.PutText(frame, fmt.Sprintf("Est:%d", a.EstimatedPeople),
		image.Pt(a.ROI.X, a.ROI.Y-10), gocv.FontHersheySimplex, 0.7, estColor, 2)
}

// drawDiagnostic writes a standalone message onto frames that cannot be
// processed.
func drawDiagnostic(frame *gocv.Mat, msg string, y int, c color.RGBA) {
	gocv.PutText(frame, msg, image.Pt(10, y), gocv.FontHersheySimplex, 0.7, c, 2)
}
