package settings

import "sync"

// Arguments holds the process-wide configuration, populated from command
// line flags in main.
type Arguments struct {
	// The file path to the data files
	DataDir string

	// Directory for log files (empty means stdout only)
	LogDir string

	// Name of the database to open
	DatabaseName string

	// Strongly verbose logging
	Verbose bool

	// Enable debug mode (development logger)
	Debug bool

	// Enable authentication
	AuthEnabled bool

	// Write a snapshot on shutdown
	SnapshotOnExit bool
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the global settings instance.
func GetSettings() *Arguments {
	once.Do(func() {
		instance = &Arguments{}
	})
	return instance
}
