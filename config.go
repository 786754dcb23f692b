package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config carries all tunables, loaded once at startup from the environment.
type Config struct {
	Port      string
	FeedCount int
	UploadDir string

	ConfidenceThreshold       float64
	DensityThresholdHigh      float64
	DensityThresholdCritical  float64
	RealWorldROIAreaM2        float64
	AreaPerPersonM2           float64
	DetectionCorrectionFactor float64
	SuperCriticalThreshold    int

	FrameInterval time.Duration

	ModelWeightsPath string
	ModelConfigPath  string

	KafkaBrokers    string
	KafkaAlertTopic string
}

// loadConfig reads the environment, honoring a .env file when present.
func loadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded environment variables from .env file")
	}

	return &Config{
		Port:      envString("PORT", "8080"),
		FeedCount: envInt("FEED_COUNT", 4),
		UploadDir: envString("UPLOAD_DIR", "uploads"),

		ConfidenceThreshold:       envFloat("CONFIDENCE_THRESHOLD", 0.1),
		DensityThresholdHigh:      envFloat("DENSITY_THRESHOLD_HIGH", 0.05),
		DensityThresholdCritical:  envFloat("DENSITY_THRESHOLD_CRITICAL", 0.10),
		RealWorldROIAreaM2:        envFloat("REAL_WORLD_ROI_AREA_M2", 10000),
		AreaPerPersonM2:           envFloat("AREA_PER_PERSON_M2", 0.25),
		DetectionCorrectionFactor: envFloat("DETECTION_CORRECTION_FACTOR", 10),
		SuperCriticalThreshold:    envInt("SUPER_CRITICAL_THRESHOLD", 1_000_000),

		FrameInterval: time.Duration(envInt("FRAME_INTERVAL_MS", 10)) * time.Millisecond,

		ModelWeightsPath: envString("MODEL_WEIGHTS_PATH", "models/yolo-crowd.weights"),
		ModelConfigPath:  envString("MODEL_CONFIG_PATH", "models/yolo-crowd.cfg"),

		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaAlertTopic: envString("KAFKA_ALERT_TOPIC", "crowd-alerts"),
	}
}

// setupLogging configures the global zerolog logger.
func setupLogging() {
	level, err := zerolog.ParseLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer in environment, using default")
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid float in environment, using default")
		return def
	}
	return f
}
