package fake

import opentracing "github.com/opentracing/opentracing-go"

// GetTracerForAddrWithError stands in for tracing.GetTracerForAddr and always
// fails.
func GetTracerForAddrWithError(addr string) (opentracing.Tracer, error) {
	return nil, fakeErr
}

// GetTracerForAddrEmpty stands in for tracing.GetTracerForAddr and returns a
// tracer that records nothing.
func GetTracerForAddrEmpty(_ string) (opentracing.Tracer, error) {
	return opentracing.NoopTracer{}, nil
}
