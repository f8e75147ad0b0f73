// Package connectutil provides the cleartext HTTP/2 plumbing the outbound
// Control-callback gRPC client needs: Connect RPC over h2c, no TLS, since
// the callback destination is an operator-internal service.
package connectutil

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// H2CHandler wraps an http.Handler with h2c support for unencrypted HTTP/2.
func H2CHandler(handler http.Handler) http.Handler {
	return h2c.NewHandler(handler, &http2.Server{
		MaxConcurrentStreams: 250,
		MaxReadFrameSize:     1 << 20,
	})
}

// H2CClient builds an *http.Client that speaks h2c to a cleartext gRPC
// destination, for connect.NewClient's httpClient argument.
func H2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
