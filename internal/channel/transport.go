package channel

import (
	"context"
	"net/http"
)

// Conn is one live connection carrying text frames.
//
// Send may be called concurrently with Receive, but not with itself.
type Conn interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Transport opens connections to the dashboard.
type Transport interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}
