package vision

// Config holds configuration for the vision extractor service.
type Config struct {
	// Endpoint is the URL of the extractor's analyze endpoint.
	Endpoint string `mapstructure:"endpoint" default:"http://localhost:9090/analyze"`
	// TimeoutSeconds bounds a single extraction call. The extractor may be
	// slow; a timeout maps to a failed scan, never a crash.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"60"`
}
