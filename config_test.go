package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.FeedCount)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, 0.1, cfg.ConfidenceThreshold)
	assert.Equal(t, 0.05, cfg.DensityThresholdHigh)
	assert.Equal(t, 0.10, cfg.DensityThresholdCritical)
	assert.Equal(t, 1_000_000, cfg.SuperCriticalThreshold)
	assert.Equal(t, 10*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, "crowd-alerts", cfg.KafkaAlertTopic)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FEED_COUNT", "8")
	t.Setenv("DENSITY_THRESHOLD_HIGH", "0.2")
	t.Setenv("FRAME_INTERVAL_MS", "40")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")

	cfg := loadConfig()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 8, cfg.FeedCount)
	assert.Equal(t, 0.2, cfg.DensityThresholdHigh)
	assert.Equal(t, 40*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, "kafka:9092", cfg.KafkaBrokers)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FEED_COUNT", "many")
	t.Setenv("CONFIDENCE_THRESHOLD", "high")

	cfg := loadConfig()
	assert.Equal(t, 4, cfg.FeedCount)
	assert.Equal(t, 0.1, cfg.ConfidenceThreshold)
}
