package clientpool

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ibgw/gateway/internal/upstream"
)

func BenchmarkAcquireRelease(b *testing.B) {
	const size = 8
	sessions := make(map[int64]*upstream.Session, size)
	for i := int64(0); i < size; i++ {
		sessions[i] = upstream.NewSession(i, upstream.DefaultConfig("127.0.0.1", 4001), noopSink, zerolog.Nop())
	}
	pool, err := New(sessions, 0, DefaultWaitBudget)
	if err != nil {
		b.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sess, err := pool.Acquire(ctx)
		if err != nil {
			b.Fatalf("Acquire: %v", err)
		}
		pool.Release(sess)
	}
}

func BenchmarkAcquireReleaseParallel(b *testing.B) {
	const size = 8
	sessions := make(map[int64]*upstream.Session, size)
	for i := int64(0); i < size; i++ {
		sessions[i] = upstream.NewSession(i, upstream.DefaultConfig("127.0.0.1", 4001), noopSink, zerolog.Nop())
	}
	pool, err := New(sessions, 0, DefaultWaitBudget)
	if err != nil {
		b.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			sess, err := pool.Acquire(ctx)
			if err != nil {
				b.Fatal(err)
			}
			pool.Release(sess)
		}
	})
}
