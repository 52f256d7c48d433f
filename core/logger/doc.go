// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production).
//
// # Request Correlation
//
// Reservations are identified end to end by a request ID. The WithRequestID
// helper attaches that ID to the log entry, ensuring that all logs related to
// a specific reservation can be correlated across the producer, the consumer
// and the dead-letter path.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Format: json (production) or console (development)
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Consumer started")
//
//	// While processing an event:
//	l := logger.WithRequestID(log, event.RequestID)
//	l.Error("Persistence failed", zap.Error(err))
package logger
