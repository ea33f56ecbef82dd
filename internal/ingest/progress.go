package ingest

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultProgressInterval bounds how often progress events are emitted.
const DefaultProgressInterval = 100 * time.Millisecond

// Estimate derives the completion percentage and remaining time from bytes
// consumed so far. The ETA is zero until throughput is positive.
func Estimate(consumed, total int64, elapsed time.Duration) (percent float64, eta time.Duration) {
	if total > 0 {
		percent = float64(consumed) / float64(total) * 100
	}
	secs := elapsed.Seconds()
	if secs <= 0 || consumed <= 0 {
		return percent, 0
	}
	speed := float64(consumed) / secs
	remaining := total - consumed
	if remaining <= 0 {
		return percent, 0
	}
	return percent, time.Duration(float64(remaining) / speed * float64(time.Second))
}

// progressReporter turns byte counts into debounced Progress events.
type progressReporter struct {
	total   int64
	start   time.Time
	limiter *rate.Sometimes
	emit    func(Progress)
}

func newProgressReporter(total int64, interval time.Duration, emit func(Progress)) *progressReporter {
	limiter := &rate.Sometimes{Interval: interval}
	if interval <= 0 {
		limiter = &rate.Sometimes{Every: 1}
	}
	return &progressReporter{
		total:   total,
		start:   time.Now(),
		limiter: limiter,
		emit:    emit,
	}
}

// observe emits at most one event per interval. The first call always emits.
func (r *progressReporter) observe(consumed int64, endpoints int) {
	if r.emit == nil {
		return
	}
	r.limiter.Do(func() {
		percent, eta := Estimate(consumed, r.total, time.Since(r.start))
		r.emit(Progress{Percent: percent, ETA: eta, Endpoints: endpoints})
	})
}
