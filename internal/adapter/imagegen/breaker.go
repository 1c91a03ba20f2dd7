package imagegen

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerGenerator fails fast while the wrapped backend keeps failing.
type BreakerGenerator struct {
	next    Generator
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerGenerator opens after maxFailures consecutive failures and
// probes again once cooldown has passed.
func NewBreakerGenerator(next Generator, maxFailures int, cooldown time.Duration) *BreakerGenerator {
	if maxFailures < 1 {
		maxFailures = 1
	}
	settings := gobreaker.Settings{
		Name:        "image-generator",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("WARN: circuit breaker %s changed from %s to %s", name, from, to)
		},
	}
	return &BreakerGenerator{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// GenerateImage calls the wrapped generator unless the breaker is open.
func (b *BreakerGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.GenerateImage(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state.
func (b *BreakerGenerator) State() gobreaker.State {
	return b.breaker.State()
}
