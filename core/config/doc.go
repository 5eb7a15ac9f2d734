// Package config provides configuration management for the puzzle ledger.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file, with defaults declared as struct tags.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings,
// divided into subsections:
//   - Server: HTTP server settings (port, API key, upload size cap)
//   - Database: MySQL connection details
//   - Storage: S3/MinIO credentials and the screenshot archive bucket
//   - Log: Logging level and format
//   - Vision: Extractor endpoint and timeout
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
