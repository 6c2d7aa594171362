package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, time.Second)

	// Test initial capacity
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	// Test exhaustion
	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	// Test refill after waiting
	time.Sleep(time.Second + 100*time.Millisecond)
	if !tb.Allow() {
		t.Error("Expected tokens to be refilled after waiting")
	}

	// Test reset
	tb.tokens = 0
	tb.Reset()
	if tb.tokens != tb.capacity {
		t.Error("Expected tokens to be reset to capacity")
	}
}

func TestTokenBucketWait(t *testing.T) {
	tb := NewTokenBucket(1, 200*time.Millisecond)

	// First request passes immediately
	start := time.Now()
	tb.Wait()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Expected first wait to be immediate, took %v", elapsed)
	}

	// Second request blocks until the refill period elapses
	start = time.Now()
	tb.Wait()
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("Expected second wait to block for the refill period, took %v", elapsed)
	}
}
