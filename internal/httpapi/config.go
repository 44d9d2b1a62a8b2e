package httpapi

import (
	"context"

	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 20

// Options configures NewMux. The zero value is usable.
type Options struct {
	// MaxBodyBytes limits JSON request bodies (default 1 MiB).
	MaxBodyBytes int64
	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
	CORSMethods []string
	CORSHeaders []string
	// BaseContext is canceled on shutdown; streams end when it is done.
	BaseContext context.Context
	// LogLevel is the default per-request log level (off, error, info, debug).
	LogLevel string
	Logger   zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.BaseContext == nil {
		o.BaseContext = context.Background()
	}
	if len(o.CORSMethods) == 0 {
		o.CORSMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(o.CORSHeaders) == 0 {
		o.CORSHeaders = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return o
}
