// Package config provides configuration management for wayvibes-ui.
package config

import "time"

// AppName names the XDG subdirectories.
const AppName = "wayvibes-ui"

// Default configuration values.
const (
	// DefaultValidatorBinary is the pack validator looked up on PATH.
	DefaultValidatorBinary = "wayvibes"

	// DefaultPlayerBinary is the playback daemon looked up on PATH.
	DefaultPlayerBinary = "wayvibes"

	// DefaultMaxBytes caps the uncompressed size of one archive.
	DefaultMaxBytes = "2GiB"

	// DefaultStagingMaxAge is how long a leftover staging directory is kept.
	DefaultStagingMaxAge = 24 * time.Hour

	// DefaultRetentionDays is how long history entries are kept.
	DefaultRetentionDays = 90

	// DefaultLogMaxSize rolls the log file over at this size.
	DefaultLogMaxSize = "10MB"
)
