package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
)

// logger returns the context logger tagged with the run id, when present.
func logger(ctx context.Context) *logrus.Entry {
	l := composables.UseLogger(ctx)
	if runID := composables.UseRunID(ctx); runID != "" {
		l = l.WithField("run_id", runID)
	}
	return l
}

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger(ctx).WithFields(fields).Log(level, msg)
}
