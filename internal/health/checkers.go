package health

import (
	"context"
	"fmt"

	"github.com/deepfocus-ai/deepfocus/internal/resilience"
)

// Pinger is implemented by stores that can cheaply verify connectivity,
// such as a pgx connection pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck reports ready while the store answers pings.
func StoreCheck(name string, store Pinger) Checker {
	return Checker{
		Name:  name,
		Check: store.Ping,
	}
}

// BreakerCheck reports ready while the backend's circuit breaker is not open.
// Half-open counts as ready: probe traffic is already flowing again.
func BreakerCheck(name string, b *resilience.Backend) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if s := b.BreakerState(); s == resilience.StateOpen {
				return fmt.Errorf("circuit breaker %s", s)
			}
			return nil
		},
	}
}
