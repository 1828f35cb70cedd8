package embeds

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("threadview/embeds")

// RecordCounts adds a transform's per-family counts to the embeds.detected
// counter.
func RecordCounts(ctx context.Context, counts Counts) {
	if len(counts) == 0 {
		return
	}
	detected, err := meter.Int64Counter("embeds.detected",
		metric.WithDescription("Embeds found in rendered messages by family"),
	)
	if err != nil {
		return
	}
	for family, n := range counts {
		detected.Add(ctx, int64(n), metric.WithAttributes(attribute.String("family", string(family))))
	}
}

// Add merges other into c.
func (c Counts) Add(other Counts) {
	for f, n := range other {
		c[f] += n
	}
}
