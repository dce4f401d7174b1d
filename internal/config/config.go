package config

const (
	DefaultTimeZone = "UTC"

	// Cycle lifecycle sweeper
	DefaultCycleSweepSchedule = "0 * * * *" // hourly

	// Spreadsheet uploads
	UploadMaxMemoryBytes = 32 << 20
)
