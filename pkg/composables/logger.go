package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger stored by WithLogger, or nil.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger, _ := ctx.Value(constants.LoggerKey).(*logrus.Entry)
	return logger
}
