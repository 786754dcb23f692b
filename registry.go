package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// streamBoundary separates parts of the multipart video stream.
const streamBoundary = "frame"

// Feed is one independently managed video channel: an active flag, an
// optional uploaded source, and the processor that owns the pipeline state.
type Feed struct {
	index int
	proc  *FeedProcessor

	mu         sync.Mutex
	active     bool
	uploadPath string
}

// Active reports whether the feed's streaming loop should keep running.
func (f *Feed) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *Feed) setActive(v bool) {
	f.mu.Lock()
	f.active = v
	f.mu.Unlock()
}

// UploadPath returns the recorded temporary upload, if any.
func (f *Feed) UploadPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadPath
}

// SetUploadPath records a stored upload against the feed.
func (f *Feed) SetUploadPath(path string) {
	f.mu.Lock()
	f.uploadPath = path
	f.mu.Unlock()
}

// takeUploadPath returns and clears the recorded upload path, so cleanup runs
// at most once per upload.
func (f *Feed) takeUploadPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := f.uploadPath
	f.uploadPath = ""
	return path
}

// Registry owns the fixed set of feeds and mediates their lifecycle. It is
// the only component that flips a feed's active flag or assigns its upload
// path.
type Registry struct {
	cfg     *Config
	feeds   []*Feed
	metrics *Metrics
	open    sourceOpener
}

func newRegistry(cfg *Config, det Detector, metrics *Metrics, publish func(int, AlertRecord)) *Registry {
	feeds := make([]*Feed, cfg.FeedCount)
	for i := range feeds {
		feeds[i] = &Feed{index: i, proc: newFeedProcessor(i, cfg, det, publish)}
	}
	return &Registry{cfg: cfg, feeds: feeds, metrics: metrics, open: openVideoSource}
}

// Feed resolves a feed index, rejecting anything outside the fixed range.
func (r *Registry) Feed(index int) (*Feed, error) {
	if index < 0 || index >= len(r.feeds) {
		return nil, fmt.Errorf("invalid feed index %d", index)
	}
	return r.feeds[index], nil
}

// ActiveCount returns how many feeds are currently streaming.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, f := range r.feeds {
		if f.Active() {
			n++
		}
	}
	return n
}

// Start opens the requested source on a feed and marks it active. A "file"
// start always routes to the feed's uploaded video, never to a caller-supplied
// path. Nothing is mutated on failure.
func (r *Registry) Start(index int, sourceType, sourcePath string) error {
	feed, err := r.Feed(index)
	if err != nil {
		return err
	}

	feed.mu.Lock()
	defer feed.mu.Unlock()
	if feed.active {
		return fmt.Errorf("processing already active")
	}

	src := sourcePath
	if sourceType == "file" {
		if feed.uploadPath == "" {
			return fmt.Errorf("no video file uploaded yet, please upload a file first")
		}
		src = feed.uploadPath
	}

	source, width, height, err := r.open(sourceType, src)
	if err != nil {
		return fmt.Errorf("failed to open video source %s: %w", src, err)
	}

	feed.proc.SetSource(source, width, height)
	feed.active = true
	log.Info().Int("feed", index).
		Str("source_type", sourceType).
		Str("source", src).
		Int("width", width).
		Int("height", height).
		Msg("Processing started")
	return nil
}

// Stop signals a feed to stop. Idempotent and non-blocking: the streaming
// loop observes the cleared flag on its next iteration and performs cleanup
// itself.
func (r *Registry) Stop(index int) error {
	feed, err := r.Feed(index)
	if err != nil {
		return err
	}
	feed.setActive(false)
	log.Info().Int("feed", index).Msg("Processing stop signal sent")
	return nil
}

// Stream runs the per-feed streaming loop, writing multipart JPEG parts until
// the active flag clears, the source ends, or the client goes away. Any loop
// exit releases the source, clears histories, and removes the temporary
// upload exactly once.
func (r *Registry) Stream(index int, w io.Writer, flush func(), clientGone <-chan struct{}) error {
	feed, err := r.Feed(index)
	if err != nil {
		return err
	}
	proc := feed.proc

	if !proc.SourceOpen() {
		feed.setActive(false)
		return fmt.Errorf("video source not set or not opened for feed %d", index)
	}

	for feed.Active() {
		select {
		case <-clientGone:
			feed.setActive(false)
		default:
		}
		if !feed.Active() {
			break
		}

		frame, ok := proc.ReadFrame()
		if !ok {
			log.Info().Int("feed", index).Msg("Failed to read frame or end of video stream, stopping feed")
			feed.setActive(false)
			break
		}

		processed := proc.ProcessFrame(frame)
		frame.Close()

		if r.metrics != nil {
			r.metrics.ObserveFrame(index, proc.LatestStats().PeopleCount)
		}

		buf, err := gocv.IMEncode(".jpg", processed)
		processed.Close()
		if err != nil {
			continue
		}

		_, werr := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", streamBoundary)
		if werr == nil {
			_, werr = w.Write(buf.GetBytes())
		}
		if werr == nil {
			_, werr = io.WriteString(w, "\r\n")
		}
		buf.Close()
		if werr != nil {
			log.Debug().Err(werr).Int("feed", index).Msg("Client disconnected during frame write")
			feed.setActive(false)
			break
		}
		flush()
		time.Sleep(r.cfg.FrameInterval)
	}

	feed.setActive(false)
	proc.Stop()
	r.cleanupUpload(feed)
	log.Info().Int("feed", index).Msg("Video streaming stopped")
	return nil
}

// cleanupUpload deletes a feed's temporary upload, if any. Deletion skips a
// file that is already gone and failures only log; the shutdown path never
// aborts on them.
func (r *Registry) cleanupUpload(feed *Feed) {
	path := feed.takeUploadPath()
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to delete temporary video")
		}
		return
	}
	log.Info().Str("path", path).Msg("Deleted temporary video")
}
