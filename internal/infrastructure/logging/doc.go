// Package logging provides structured logging for Gray Logic Sentinel.
//
// This package wraps Go's standard log/slog package so every component
// (engine, channel, dispatcher, bridges) logs with the same fields.
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	engineLog := logger.Component("security")
//	engineLog.Info("device locked", "reason", "auto_lock")
//
// Never log bearer tokens, PINs, or PIN hashes.
package logging
