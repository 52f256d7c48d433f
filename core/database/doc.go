// Package database handles database connections for the durable store.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to properly
// configure MySQL connections based on the application's configuration.
//
// # Connect
//
// The Connect function establishes a connection to the database, configures
// the connection pool and verifies the connection with a bounded ping. The
// pool limits are tuned for short reservation transactions under burst load.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
