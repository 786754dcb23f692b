package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := loadConfig()
	setupLogging()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("Failed to create upload directory")
	}

	detector, err := newHeadDetector(cfg.ModelWeightsPath, cfg.ModelConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load detection model")
	}
	defer detector.Close()

	metrics := newMetrics()

	var publisher *AlertPublisher
	if cfg.KafkaBrokers != "" {
		publisher, err = newAlertPublisher(cfg.KafkaBrokers, cfg.KafkaAlertTopic)
		if err != nil {
			log.Warn().Err(err).Msg("Kafka not available, alert publishing disabled")
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	publish := func(feed int, rec AlertRecord) {
		metrics.ObserveAlert(feed)
		if publisher == nil {
			return
		}
		if err := publisher.Publish(feed, rec); err != nil {
			log.Warn().Err(err).Int("feed", feed).Msg("Failed to publish alert")
		}
	}

	registry := newRegistry(cfg, detector, metrics, publish)
	metrics.RegisterActiveFeeds(registry.ActiveCount)

	server := newServer(cfg, registry, metrics)
	router := server.Router()

	log.Info().Str("port", cfg.Port).Int("feeds", cfg.FeedCount).Msg("Crowd worker starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}
