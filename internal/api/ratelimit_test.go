package api

import (
	"testing"
	"time"
)

func TestTokenBucket_Basic(t *testing.T) {
	bucket := newTokenBucket(10, 5) // 10 req/s, burst of 5

	// Should allow burst of 5
	for i := 0; i < 5; i++ {
		if !bucket.take() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	// 6th request should be denied (bucket empty)
	if bucket.take() {
		t.Error("Expected 6th request to be denied")
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	bucket := newTokenBucket(100, 1) // 100 req/s, burst of 1

	if !bucket.take() {
		t.Error("Expected first request to be allowed")
	}

	if bucket.take() {
		t.Error("Expected second request to be denied")
	}

	// Wait for refill (10ms should give us 1 token at 100/s)
	time.Sleep(15 * time.Millisecond)

	if !bucket.take() {
		t.Error("Expected request after refill to be allowed")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	config := &RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		Enabled:           false,
	}
	rl := newRateLimiter(config)

	for i := 0; i < 100; i++ {
		if !rl.allowKey("client-a") {
			t.Errorf("Expected request %d to be allowed when rate limiting is disabled", i+1)
		}
	}
}

func TestRateLimiter_Enabled(t *testing.T) {
	config := &RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         3,
		Enabled:           true,
	}
	rl := newRateLimiter(config)

	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.allowKey("client-a") {
			allowed++
		}
	}

	if allowed != 3 {
		t.Errorf("Expected 3 requests allowed (burst), got %d", allowed)
	}
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	config := &RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         1,
		Enabled:           true,
	}
	rl := newRateLimiter(config)

	if !rl.allowKey("client-a") {
		t.Error("Expected first request from client-a to be allowed")
	}
	if rl.allowKey("client-a") {
		t.Error("Expected second request from client-a to be denied")
	}

	// A different client has its own bucket.
	if !rl.allowKey("client-b") {
		t.Error("Expected first request from client-b to be allowed")
	}
}

func TestRateLimiter_EmptyKey(t *testing.T) {
	config := &RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         1,
		Enabled:           true,
	}
	rl := newRateLimiter(config)

	if !rl.allowKey("") {
		t.Error("Expected request with empty key to be allowed")
	}
	if rl.allowKey("") {
		t.Error("Expected second request with empty key to share the unknown bucket")
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	config := DefaultRateLimiterConfig()

	if config.RequestsPerSecond != 100 {
		t.Errorf("Expected 100 req/s, got %f", config.RequestsPerSecond)
	}
	if config.BurstSize != 200 {
		t.Errorf("Expected burst of 200, got %d", config.BurstSize)
	}
	if !config.Enabled {
		t.Error("Expected rate limiting to be enabled by default")
	}
}
