package integration

import (
	"time"

	"github.com/laikahq/sync-engine/models"
)

// DefaultReadHistoryMonths bounds how far back history-shaped types
// (pull requests, events, change requests) are fetched when the
// integration metadata does not say otherwise.
const DefaultReadHistoryMonths = 18

// ReadWindowStart returns the oldest instant a history fetch should
// reach, as a rolling window ending now.
func ReadWindowStart(meta models.Metadata, now time.Time) time.Time {
	months := meta.ReadHistoryMonths
	if months <= 0 {
		months = DefaultReadHistoryMonths
	}
	return now.AddDate(0, -months, 0).UTC()
}
