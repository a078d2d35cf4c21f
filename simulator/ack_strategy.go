package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// AckStrategy decides whether and when an acknowledgment is sent. send is
// called at most once.
type AckStrategy interface {
	Ack(ctx context.Context, send func())
}

// AutoAck sends an ACK after an optional fixed delay.
type AutoAck struct {
	Delay time.Duration
}

// Ack implements AckStrategy.
func (a AutoAck) Ack(ctx context.Context, send func()) {
	if !wait(ctx, a.Delay) {
		return
	}
	send()
}

// RandomAck drops acknowledgments with the configured probability and
// waits for the specified delay before sending.
type RandomAck struct {
	Delay    time.Duration
	DropRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAck seeds the drop decisions with seed.
func NewRandomAck(delay time.Duration, dropRate float64, seed int64) *RandomAck {
	return &RandomAck{Delay: delay, DropRate: dropRate, rng: rand.New(rand.NewSource(seed))}
}

// Ack implements AckStrategy.
func (r *RandomAck) Ack(ctx context.Context, send func()) {
	if r.drop() {
		return
	}
	if !wait(ctx, r.Delay) {
		return
	}
	send()
}

func (r *RandomAck) drop() bool {
	if r.DropRate <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r.rng.Float64() < r.DropRate
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
