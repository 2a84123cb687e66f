package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"
)

// Benchmark 1: PlaceBid - Isolated Auctions (Low Contention - Micro Benchmark)
func Benchmark_PlaceBid_Isolated(b *testing.B) {
	_, svc := setupService(b, b.N, benchUsers)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		userID := userName(i % benchUsers)
		auctionID := auctionName(i)
		bidAmount := float64(51 + rand.Intn(100))
		if _, err := svc.PlaceBid(ctx, auctionID, userID, bidAmount); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: PlaceBid - Parallel bids on distinct auctions never contend on the key lock
func Benchmark_PlaceBid_ConcurrentDistinctAuctions(b *testing.B) {
	const auctions = 1024
	_, svc := setupService(b, auctions, benchUsers)
	ctx := context.Background()

	var next, lastBid int64 = 0, 50

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			i := atomic.AddInt64(&next, 1)
			amount := atomic.AddInt64(&lastBid, 1)
			_, _ = svc.PlaceBid(ctx, auctionName(int(i)%auctions), userName(rnd.Intn(benchUsers)), float64(amount))
		}
	})
}

// Benchmark 3: PlaceBid - Shared Auction (High Contention - Concurrency Benchmark)
func Benchmark_PlaceBid_ConcurrentSharedAuction(b *testing.B) {
	_, svc := setupService(b, 1, benchUsers)
	ctx := context.Background()
	auctionID := auctionName(0)

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 50

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			userID := userName(rnd.Intn(benchUsers))
			nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			_, _ = svc.PlaceBid(ctx, auctionID, userID, float64(nextBid))
		}
	})
}

// Benchmark 4: GetAuction - Concurrent reads of one auction
func Benchmark_GetAuction_ConcurrentSharedAuction(b *testing.B) {
	_, svc := setupService(b, 1, benchUsers)
	ctx := context.Background()
	auctionID := auctionName(0)

	for j := 0; j < 100; j++ {
		_, _ = svc.PlaceBid(ctx, auctionID, userName(j%benchUsers), float64(51+j))
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := svc.GetAuction(ctx, auctionID); err != nil {
				b.Errorf("failed to get auction: %v", err)
				return
			}
		}
	})
}

// Benchmark 5: Mixed Workload (Readers + Writers concurrently)
func Benchmark_MixedWorkload_SharedAuction(b *testing.B) {
	_, svc := setupService(b, 1, benchUsers)
	ctx := context.Background()
	auctionID := auctionName(0)

	for j := 0; j < 50; j++ {
		_, _ = svc.PlaceBid(ctx, auctionID, userName(j%benchUsers), float64(51+j*2))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 150

	// Ratio: 70% readers, 30% writers
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			if rnd.Intn(10) < 3 {
				nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
				_, _ = svc.PlaceBid(ctx, auctionID, userName(rnd.Intn(benchUsers)), float64(nextBid))
				continue
			}
			_, _ = svc.GetAuction(ctx, auctionID)
		}
	})
}

func auctionName(i int) string { return fmt.Sprintf("auction_%d", i) }

func userName(i int) string { return fmt.Sprintf("user_%d", i) }
