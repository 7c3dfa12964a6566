package orders

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/checkout-backend/pkg/logger"
)

const (
	orderNumberSequence = "order_number"
	orderNumberLayout   = "20060102150405"

	// fallbackSeedSpan keeps a freshly seeded local counter at the same
	// six-digit width the shared sequence starts with.
	fallbackSeedSpan = 900_000
)

type sequencer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// NumberGenerator issues order numbers of the form PREFIX-<utc yyyymmddhhmmss>-<seq>.
// The sequence comes from a shared Redis counter; when Redis is unavailable a
// process-local counter keeps numbers strictly increasing for this instance and
// the unique order_number constraint rejects any cross-instance collision.
type NumberGenerator struct {
	prefix   string
	seq      sequencer
	fallback atomic.Int64
	logg     *logger.Logger
}

// NewNumberGenerator builds a generator. seq may be nil.
func NewNumberGenerator(prefix string, seq sequencer, logg *logger.Logger) *NumberGenerator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ORD"
	}
	g := &NumberGenerator{prefix: prefix, seq: seq, logg: logg}
	g.fallback.Store(time.Now().UnixMicro() % fallbackSeedSpan)
	return g
}

// Next returns a fresh order number stamped with now.
func (g *NumberGenerator) Next(ctx context.Context, now time.Time) string {
	return fmt.Sprintf("%s-%s-%06d", g.prefix, now.UTC().Format(orderNumberLayout), g.nextSequence(ctx))
}

func (g *NumberGenerator) nextSequence(ctx context.Context) int64 {
	if g.seq != nil {
		n, err := g.seq.NextSequence(ctx, orderNumberSequence)
		if err == nil {
			return n
		}
		if g.logg != nil {
			g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "order number sequence unavailable, using local counter")
		}
	}
	return g.fallback.Add(1)
}
