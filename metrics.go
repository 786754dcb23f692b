package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes pipeline counters for Prometheus scraping.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed *prometheus.CounterVec
	peopleDetected  *prometheus.GaugeVec
	alertsEmitted   *prometheus.CounterVec
}

func newMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.framesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crowd_frames_processed_total",
		Help: "Total frames processed per feed",
	}, []string{"feed"})

	m.peopleDetected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crowd_people_detected",
		Help: "People detected in the most recent frame per feed",
	}, []string{"feed"})

	m.alertsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crowd_alerts_total",
		Help: "Super-critical alerts emitted per feed",
	}, []string{"feed"})

	m.registry.MustRegister(m.framesProcessed, m.peopleDetected, m.alertsEmitted)
	return m
}

// RegisterActiveFeeds exposes a live gauge backed by the registry's own
// active-feed count.
func (m *Metrics) RegisterActiveFeeds(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "crowd_active_feeds",
		Help: "Feeds currently streaming",
	}, func() float64 { return float64(count()) }))
}

// ObserveFrame records one processed frame and its detection count.
func (m *Metrics) ObserveFrame(feed, peopleCount int) {
	label := strconv.Itoa(feed)
	m.framesProcessed.WithLabelValues(label).Inc()
	m.peopleDetected.WithLabelValues(label).Set(float64(peopleCount))
}

// ObserveAlert records one emitted super-critical alert.
func (m *Metrics) ObserveAlert(feed int) {
	m.alertsEmitted.WithLabelValues(strconv.Itoa(feed)).Inc()
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
