package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
)

// NewTransferClient builds an *http.Client tuned for part-sized range GETs
// and multipart PUTs: a large connection pool so a bounded worker pool of
// concurrent parts doesn't starve on idle-connection reuse, HTTP/2 by
// default, and no overall client timeout (each request carries its own
// context deadline instead).
func NewTransferClient() *nethttp.Client {
	tr := &nethttp.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},

		MaxIdleConns:        512,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   60 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("TOS_DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return &nethttp.Client{Transport: tr, Timeout: 0}
}
