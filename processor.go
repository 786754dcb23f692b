package main

import (
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Stats is the per-feed snapshot published after every processed frame.
type Stats struct {
	PeopleCount      int      `json:"people_count"`
	Density          float64  `json:"density"`
	PredictedDensity *float64 `json:"pred_density"`
	Alert            string   `json:"alert"`
	EstimatedPeople  int      `json:"est_people"`
}

// FeedProcessor owns one feed's video source, ROI, and detection state. A
// single mutex guards everything it publishes, so stats readers always see a
// complete snapshot and a frame in flight sees the ROI either before or after
// a concurrent update, never a partial one.
type FeedProcessor struct {
	cfg      *Config
	detector Detector
	publish  func(feed int, rec AlertRecord)
	feed     int

	mu          sync.Mutex
	source      frameSource
	frameWidth  int
	frameHeight int
	roi         *ROI
	densities   *densityWindow
	alerts      *alertLog
	headCounts  *headCountHistory
	stats       Stats

	now func() time.Time
}

func newFeedProcessor(feed int, cfg *Config, det Detector, publish func(int, AlertRecord)) *FeedProcessor {
	return &FeedProcessor{
		cfg:        cfg,
		detector:   det,
		publish:    publish,
		feed:       feed,
		densities:  newDensityWindow(),
		alerts:     &alertLog{},
		headCounts: &headCountHistory{},
		stats:      Stats{Alert: AlertNormal},
		now:        time.Now,
	}
}

// SetSource installs a newly opened source, releasing any previous handle.
func (p *FeedProcessor) SetSource(src frameSource, width, height int) {
	p.mu.Lock()
	prev := p.source
	p.source = src
	p.frameWidth = width
	p.frameHeight = height
	p.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			log.Warn().Err(err).Int("feed", p.feed).Msg("Failed to release previous video source")
		}
	}
}

// SourceOpen reports whether a readable source is attached.
func (p *FeedProcessor) SourceOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source != nil && p.source.IsOpened()
}

// FrameSize returns the dimensions captured when the source opened.
func (p *FeedProcessor) FrameSize() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameWidth, p.frameHeight
}

// ReadFrame pulls the next frame from the source. The returned Mat is owned by
// the caller and must be closed.
func (p *FeedProcessor) ReadFrame() (gocv.Mat, bool) {
	p.mu.Lock()
	src := p.source
	p.mu.Unlock()

	if src == nil {
		return gocv.Mat{}, false
	}
	frame := gocv.NewMat()
	if !src.Read(&frame) || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, false
	}
	return frame, true
}

// SetROI maps percentage coordinates onto the current frame size and installs
// the result.
func (p *FeedProcessor) SetROI(xPct, yPct, wPct, hPct float64) ROI {
	p.mu.Lock()
	defer p.mu.Unlock()
	roi := computeROI(xPct, yPct, wPct, hPct, p.frameWidth, p.frameHeight)
	p.roi = &roi
	return roi
}

// makeDivisible rounds down to the nearest multiple of divisor.
func makeDivisible(v, divisor int) int {
	return v / divisor * divisor
}

// ProcessFrame runs the full pipeline on one frame and returns the annotated
// copy. Detection failures degrade to an empty result so the stream never
// aborts on a bad frame.
func (p *FeedProcessor) ProcessFrame(frame gocv.Mat) gocv.Mat {
	disp := frame.Clone()

	p.mu.Lock()
	roiSet := p.roi != nil
	var roi ROI
	if roiSet {
		roi = *p.roi
	}
	p.mu.Unlock()

	if !roiSet {
		drawDiagnostic(&disp, "Select ROI first", 30, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		return disp
	}
	if !roi.Valid() {
		drawDiagnostic(&disp, "Invalid ROI selected. Please select a valid ROI.", 60, color.RGBA{R: 255, A: 255})
		return disp
	}

	detections := p.detect(frame, roi)
	peopleCount := len(detections)
	now := p.now()

	p.mu.Lock()
	density := computeDensity(peopleCount, p.cfg.RealWorldROIAreaM2, roi.PixelArea())
	p.densities.Push(density)
	var predicted *float64
	if v, ok := p.densities.Predicted(); ok {
		predicted = &v
	}
	estimated := estimatePeople(p.cfg.RealWorldROIAreaM2, p.cfg.AreaPerPersonM2, p.cfg.DetectionCorrectionFactor)
	level := classifyAlert(density, estimated, p.cfg)

	var fired *AlertRecord
	if level == AlertSuperCritical {
		rec := AlertRecord{
			Time:             now.Format(alertTimeLayout),
			Density:          density,
			PredictedDensity: predicted,
			EstimatedPeople:  estimated,
			Alert:            level,
		}
		p.alerts.Push(rec)
		fired = &rec
	}

	p.headCounts.Record(now, peopleCount)
	p.stats = Stats{
		PeopleCount:      peopleCount,
		Density:          density,
		PredictedDensity: predicted,
		Alert:            level,
		EstimatedPeople:  estimated,
	}
	p.mu.Unlock()

	if fired != nil && p.publish != nil {
		p.publish(p.feed, *fired)
	}

	centers := make([]image.Point, 0, len(detections))
	for _, d := range detections {
		centers = append(centers, image.Pt(
			roi.X+(d.Box.Min.X+d.Box.Max.X)/2,
			roi.Y+(d.Box.Min.Y+d.Box.Max.Y)/2,
		))
	}
	drawAnnotations(&disp, annotation{
		ROI:              roi,
		Centers:          centers,
		PeopleCount:      peopleCount,
		Density:          density,
		RealWorldDensity: p.cfg.RealWorldROIAreaM2 > 0,
		PredictedDensity: predicted,
		AlertLevel:       level,
		EstimatedPeople:  estimated,
	})
	return disp
}

// detect crops the ROI, converts it to the detector's color layout, trims both
// sides down to multiples of 32 (discarding excess rows and columns on the
// bottom and right), and runs the detector. The returned detections all clear
// the confidence threshold.
func (p *FeedProcessor) detect(frame gocv.Mat, roi ROI) []Detection {
	rect := image.Rect(roi.X, roi.Y, roi.X+roi.W, roi.Y+roi.H)
	rect = rect.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return nil
	}

	region := frame.Region(rect)
	defer region.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(region, &rgb, gocv.ColorBGRToRGB)

	input := rgb
	w := makeDivisible(rgb.Cols(), 32)
	h := makeDivisible(rgb.Rows(), 32)
	if w != rgb.Cols() || h != rgb.Rows() {
		if w == 0 || h == 0 {
			return nil
		}
		trimmed := rgb.Region(image.Rect(0, 0, w, h))
		defer trimmed.Close()
		input = trimmed
	}

	raw, err := p.detector.Detect(input)
	if err != nil {
		log.Warn().Err(err).Int("feed", p.feed).Msg("Detection failed, treating frame as empty")
		return nil
	}

	var kept []Detection
	for _, d := range raw {
		if d.Confidence > p.cfg.ConfidenceThreshold {
			kept = append(kept, d)
		}
	}
	return kept
}

// LatestStats returns the newest published snapshot.
func (p *FeedProcessor) LatestStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// AlertRecords returns the retained super-critical alerts, oldest first.
func (p *FeedProcessor) AlertRecords() []AlertRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alerts.Records()
}

// HeadCounts returns the head-count history, newest first.
func (p *FeedProcessor) HeadCounts() []HeadCountBucket {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headCounts.Buckets()
}

// Stop releases the source and clears all accumulated state. Safe to call
// repeatedly.
func (p *FeedProcessor) Stop() {
	p.mu.Lock()
	src := p.source
	p.source = nil
	p.roi = nil
	p.frameWidth = 0
	p.frameHeight = 0
	p.densities.Reset()
	p.alerts.Reset()
	p.headCounts.Reset()
	p.stats = Stats{Alert: AlertNormal}
	p.mu.Unlock()

	if src != nil {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Int("feed", p.feed).Msg("Failed to release video source")
		}
	}
	log.Info().Int("feed", p.feed).Msg("Feed processor stopped and reset")
}
