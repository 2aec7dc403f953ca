package proxy

import "context"

// Service reads and replaces the proxy configuration.
//
// UpdateProxy replaces the whole configuration atomically. Concurrent updates are
// not coordinated: the last write wins.
type Service interface {
	GetProxy(ctx context.Context) (Proxy, error)
	UpdateProxy(ctx context.Context, proxy Proxy) error
}
