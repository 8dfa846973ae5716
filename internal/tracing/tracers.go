// Package tracing manages the opentracing tracers of a node, one per
// address, configured for jaeger through the environment.
package tracing

import (
	"io"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	_ "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"golang.org/x/xerrors"
)

type key int

// ProtocolKey is the key used to denote a protocol in a `context.Context`.
// The transport reads it back to tag the span of a stream, so a trace can
// tell a gate setup from an unsealing.
const ProtocolKey key = iota

var (
	// ProtocolTag is the span tag holding the protocol name.
	ProtocolTag = "protocol"
	// UndefinedProtocol is the ProtocolTag value used when the context
	// carries no ProtocolKey.
	UndefinedProtocol = "__UNDEFINED_PROTOCOL__"
)

type tracerCatalog struct {
	tracerByAddr map[string]closableTracer
	sync.Mutex
}

type closableTracer struct {
	tracer opentracing.Tracer
	closer io.Closer
}

var catalog = tracerCatalog{
	tracerByAddr: make(map[string]closableTracer),
}

// GetTracerForAddr returns the tracer of the given address, creating it on
// first use. The address becomes the service name of the traces.
func GetTracerForAddr(addr string) (opentracing.Tracer, error) {
	catalog.Lock()
	defer catalog.Unlock()

	tc, ok := catalog.tracerByAddr[addr]
	if ok {
		return tc.tracer, nil
	}

	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, xerrors.Errorf("error parsing jaeger configuration from environment: %v", err)
	}

	cfg.ServiceName = addr

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, xerrors.Errorf("error creating new tracer: %v", err)
	}

	catalog.tracerByAddr[addr] = closableTracer{
		tracer: tracer,
		closer: closer,
	}

	return tracer, nil
}

// CloseAll closes all the tracer instances.
func CloseAll() error {
	catalog.Lock()
	defer catalog.Unlock()

	for _, tc := range catalog.tracerByAddr {
		err := tc.closer.Close()
		if err != nil {
			return err
		}
	}

	return nil
}
