package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/composables"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/constants"
)

func loggerFromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	if entry := composables.UseLogger(ctx); entry != nil {
		return entry
	}
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Logger); ok {
		return logrus.NewEntry(logger)
	}
	return nil
}

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}
