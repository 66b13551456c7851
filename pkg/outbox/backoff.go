package outbox

import (
	"io"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// backoff doubles from one second per attempt, capped at maxBackoff.
func backoff(attempts int, maxBackoff time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := time.Second
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}

// jitter is uniform in [0, maxJitter].
func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 || r == nil {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}

func nopLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
