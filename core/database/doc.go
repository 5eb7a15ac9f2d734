// Package database handles the shared database connection and schema
// inspection.
//
// It provides a wrapper around GORM to configure the single long-lived MySQL
// connection pool the whole service runs on. Every store (inventory pieces,
// scan ledger, image-hash guard) receives this handle by injection; there is
// no ambient global.
//
// # Connect
//
// Connect builds the DSN with encoded credentials and per-operation timeouts,
// tunes the pool, and pings before returning, so a misconfigured database
// fails at startup rather than on the first user action.
//
// # Schema Inspection
//
// GetTableColumns retrieves the live column definitions of a table. The
// migrate command uses it to report what AutoMigrate actually provisioned.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
