package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"provenance/pkg/domain"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	t.Run("zero values when unset", func(t *testing.T) {
		assert.Equal(t, domain.Identity(""), Caller(ctx))
		assert.Empty(t, RequestID(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("returns injected values", func(t *testing.T) {
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		ctx := WithCaller(ctx, "technician-7")
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithTime(ctx, fixed)

		assert.Equal(t, domain.Identity("technician-7"), Caller(ctx))
		assert.Equal(t, "req-1", RequestID(ctx))
		assert.Equal(t, fixed, Now(ctx))
	})

	t.Run("drops sub-microsecond precision", func(t *testing.T) {
		precise := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
		assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 123456000, time.UTC), Now(WithTime(ctx, precise)))
		assert.Zero(t, Now(ctx).Nanosecond()%int(time.Microsecond))
	})
}
