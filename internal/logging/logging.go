package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sitescout/internal/explore"
)

// New builds a JSON production logger, or a console logger when env is
// "development".
func New(env, level string) (*zap.Logger, error) {
	var config zap.Config
	if strings.EqualFold(env, "development") {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	parsed, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	config.Level = zap.NewAtomicLevelAt(parsed)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// EventObserver logs controller events. Per-link scores go to debug so a
// large page does not flood info output.
func EventObserver(logger *zap.Logger) func(explore.Event) {
	return func(event explore.Event) {
		fields := []zap.Field{
			zap.String("phase", string(event.Phase)),
		}
		if event.URL != "" {
			fields = append(fields, zap.String("url", event.URL))
		}

		switch event.Kind {
		case explore.EventPhaseEntered:
			logger.Debug("Phase entered", fields...)
		case explore.EventPageExplored:
			logger.Info("Page explored", append(fields,
				zap.Float64("confidence", event.Confidence),
				zap.Bool("satisfies_goal", event.SatisfiesGoal),
				zap.String("data_type", string(event.DataType)),
				zap.Int("batch", event.Batch))...)
		case explore.EventPageFailed:
			logger.Warn("Page failed", append(fields, zap.String("error", event.Error))...)
		case explore.EventLinksGrouped:
			logger.Debug("Links grouped", append(fields, zap.Int("groups", event.Count))...)
		case explore.EventLinkScored:
			logger.Debug("Link scored", append(fields,
				zap.Float64("score", event.Score),
				zap.String("reasoning", event.Message))...)
		case explore.EventLinksRanked:
			logger.Info("Links ranked", append(fields,
				zap.Int("links", event.Count),
				zap.Int("high", event.High),
				zap.Int("medium", event.Medium),
				zap.Int("low", event.Low))...)
		case explore.EventBatchStarted:
			logger.Debug("Batch started", append(fields, zap.Int("batch", event.Batch), zap.Int("size", event.Count))...)
		case explore.EventBatchCompleted:
			logger.Info("Batch completed", append(fields, zap.Int("batch", event.Batch), zap.Int("pages", event.Pages))...)
		case explore.EventStopCondition:
			logger.Info("Stopping exploration", append(fields, zap.String("reason", event.Message))...)
		case explore.EventNotification:
			logger.Info("Notification", append(fields, zap.String("message", event.Message))...)
		case explore.EventRunCompleted:
			if event.Error != "" {
				logger.Warn("Run failed", append(fields, zap.String("error", event.Error))...)
				return
			}
			logger.Info("Run completed", append(fields,
				zap.Int("pages", event.Pages),
				zap.Float64("confidence", event.Confidence),
				zap.String("strategy", event.Message))...)
		default:
			logger.Debug("Exploration event", append(fields, zap.String("kind", string(event.Kind)))...)
		}
	}
}
