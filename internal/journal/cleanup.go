package journal

import "time"

// RunCleanupLoop runs cleanupFn immediately, then every CleanupInterval
// until stop is closed.
func RunCleanupLoop(stop <-chan struct{}, cleanupFn func()) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	cleanupFn()

	for {
		select {
		case <-ticker.C:
			cleanupFn()
		case <-stop:
			return
		}
	}
}

// cutoff returns the oldest timestamp still within retention.
func cutoff(retentionDays int) time.Time {
	return time.Now().AddDate(0, 0, -retentionDays).UTC()
}
