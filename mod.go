// Package agora defines the global logger and the Prometheus registry of the
// module.
//
// Agora is a content marketplace built as a small ledger: sellers list
// encrypted assets behind a price, buyers pay in a fungible token through an
// escrow program, and a cohort of gatekeepers releases the decryption
// capability only to accounts that the ledger proves have paid, or to the
// seller itself.
//
// The repository is organized around a few top-level abstractions:
//
//	serde    - serialization contexts and formats
//	crypto   - signatures, hashing and key material
//	mino     - minimalist network overlay for the gatekeeper cohort
//	core     - storage, transactions and contract execution
//	market   - the escrow ledger program and its service
//	gate     - the predicate-gated decryption protocol
//	client   - the purchase and decrypt flow coordinator
//	index    - the audit-trail indexer
package agora

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "LLVL"

const defaultLevel = zerolog.NoLevel

func init() {
	lvl := os.Getenv(EnvLogLevel)

	var level zerolog.Level

	switch lvl {
	case "error":
		level = zerolog.ErrorLevel
	case "warn":
		level = zerolog.WarnLevel
	case "info":
		level = zerolog.InfoLevel
	case "debug":
		level = zerolog.DebugLevel
	case "trace":
		level = zerolog.TraceLevel
	case "":
		level = defaultLevel
	default:
		level = zerolog.TraceLevel
	}

	Logger = Logger.Level(level)
}

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. By default, it only prints
// error level messages but it can be changed through the environment
// variable.
var Logger = zerolog.New(logout).Level(defaultLevel).
	With().Timestamp().Logger().
	With().Caller().Logger()

// PromCollectors exposes the Prometheus collectors created in the module. The
// proxy HTTP server is in charge of registering them when metrics are
// enabled.
var PromCollectors []prometheus.Collector

// Version contains the version of the binary, set at build time.
var Version = "unreleased"

// BuildTime indicates the time at which the binary has been built, set at
// build time.
var BuildTime = "unknown"
