package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/constants"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/logging"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger from the context or a discarding one.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logrus.NewEntry(logging.NopLogger())
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, constants.RunIDKey, runID)
}

func UseRunID(ctx context.Context) string {
	v, _ := ctx.Value(constants.RunIDKey).(string)
	return v
}
