// Package config provides configuration management for the ticketing service.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings,
// divided into subsections:
//   - Database: MySQL connection details for the durable store
//   - Redis: cache and lock store connection details
//   - Kafka: broker addresses, topics and consumer groups
//   - Inventory: seat counter TTL and reconciliation interval
//   - Reservation: lock windows, retry policy and batch sizing
//   - Log: logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Kafka.Topic)
package config
