package server

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	// The chat front end presents it in the X-Api-Key header.
	ApiKey string `mapstructure:"api_key" default:""`
	// BodyLimitMB caps the size of uploaded screenshots in megabytes.
	BodyLimitMB int `mapstructure:"body_limit_mb" default:"16"`
}

// BodyLimitBytes returns the upload size cap in bytes.
func (c Config) BodyLimitBytes() int {
	limit := c.BodyLimitMB
	if limit <= 0 {
		limit = 16
	}
	return limit * 1024 * 1024
}
