package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nayose.log")

	f, logger, err := FileLogger(logrus.InfoLevel, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	logger.WithField("table", "m_line").Info("nayose.write")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"table":"m_line"`)
	require.Contains(t, string(raw), `"msg":"nayose.write"`)
}

func TestNopLogger_Discards(t *testing.T) {
	logger := NopLogger()
	require.Equal(t, logrus.PanicLevel, logger.GetLevel())
	logger.Error("ignored")
}
