package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketFractionalRefill(t *testing.T) {
	// 0.2/s = 每 5 秒补一个令牌，整数截断会把它当成 0
	tb := NewTokenBucket(3, 0.2)
	clock := time.Unix(1000, 0)
	tb.now = func() time.Time { return clock }
	tb.lastRefill = clock

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("第 %d 个初始令牌不应被拒", i+1)
		}
	}
	if tb.Allow() {
		t.Fatal("桶空后应被拒")
	}

	clock = clock.Add(4 * time.Second)
	if tb.Allow() {
		t.Fatal("4s 只补了 0.8 个令牌，应被拒")
	}

	clock = clock.Add(time.Second)
	if !tb.Allow() {
		t.Fatal("满 5s 应补出一个完整令牌")
	}
	if tb.Allow() {
		t.Fatal("刚补的令牌用掉后应再次被拒")
	}
}

func TestTokenBucketCapacityCap(t *testing.T) {
	tb := NewTokenBucket(2, 1)
	clock := time.Unix(1000, 0)
	tb.now = func() time.Time { return clock }
	tb.lastRefill = clock

	clock = clock.Add(time.Hour)
	if got := tb.GetRemaining(); got != 2 {
		t.Fatalf("补充不应超过容量: %d", got)
	}
}
