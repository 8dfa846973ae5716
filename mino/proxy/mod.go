// Package proxy defines the HTTP surface of a node, where the marketplace
// services and the metrics handler mount their endpoints.
package proxy

import (
	"net"
	"net/http"
)

// Proxy defines the primitives of the http server that handles client side
// requests.
type Proxy interface {
	// Listen starts the proxy server. This call is assumed to be blocking
	Listen()

	// Stop stops the proxy server
	Stop()

	// RegisterHandler registers a new handler
	RegisterHandler(path string, handler func(http.ResponseWriter, *http.Request))

	// GetAddr returns the listen address once the server is started, or nil.
	GetAddr() net.Addr
}
