package journal

import "time"

const (
	// TableName is the SQL table and MongoDB collection holding entries.
	TableName = "bridge_journal"

	// BatchFlushThreshold is the number of entries that triggers an immediate flush.
	BatchFlushThreshold = 100

	// CleanupInterval is how often entries past retention are deleted.
	CleanupInterval = 1 * time.Hour
)
