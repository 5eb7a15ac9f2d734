// Package server holds the HTTP server configuration.
//
// The main application entry point handles the server startup; this package
// only defines the configuration structure for it: the listen port, the API
// key the chat front end must present, and the screenshot upload size cap.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server
// settings.
package server
