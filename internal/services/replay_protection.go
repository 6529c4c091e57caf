package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"content-market/pkg/logging"
)

// SettledPaymentCache remembers payment ids that settled recently so a
// replayed callback is rejected without a store round-trip. It is only a
// pre-filter; the unique payment id in the store stays authoritative.
type SettledPaymentCache interface {
	IsSettled(ctx context.Context, paymentID string) (bool, error)
	MarkSettled(ctx context.Context, paymentID string) error
}

const defaultSettledTTL = 24 * time.Hour

// ReplayProtection is the in-process SettledPaymentCache used when Redis is
// not configured.
type ReplayProtection struct {
	settled         map[string]time.Time
	mutex           sync.RWMutex
	cleanupInterval time.Duration
	ttl             time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewReplayProtection creates the cache and starts its cleanup goroutine.
// Call Stop to release it.
func NewReplayProtection(ttl time.Duration) *ReplayProtection {
	if ttl <= 0 {
		ttl = defaultSettledTTL
	}
	rp := &ReplayProtection{
		settled:         make(map[string]time.Time),
		cleanupInterval: time.Hour,
		ttl:             ttl,
		stopCleanup:     make(chan struct{}),
	}

	go rp.startCleanupRoutine()

	return rp
}

// IsSettled reports whether paymentID was marked within the TTL.
func (rp *ReplayProtection) IsSettled(_ context.Context, paymentID string) (bool, error) {
	rp.mutex.RLock()
	defer rp.mutex.RUnlock()

	settledAt, exists := rp.settled[paymentKey(paymentID)]
	if !exists {
		return false, nil
	}
	return time.Since(settledAt) <= rp.ttl, nil
}

// MarkSettled records paymentID.
func (rp *ReplayProtection) MarkSettled(_ context.Context, paymentID string) error {
	rp.mutex.Lock()
	defer rp.mutex.Unlock()

	rp.settled[paymentKey(paymentID)] = time.Now()
	return nil
}

// paymentKey hashes the id so arbitrary provider strings make uniform keys.
func paymentKey(paymentID string) string {
	hash := sha256.Sum256([]byte(paymentID))
	return hex.EncodeToString(hash[:])
}

func (rp *ReplayProtection) startCleanupRoutine() {
	ticker := time.NewTicker(rp.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rp.cleanup()
		case <-rp.stopCleanup:
			return
		}
	}
}

func (rp *ReplayProtection) cleanup() {
	rp.mutex.Lock()
	defer rp.mutex.Unlock()

	now := time.Now()
	initialCount := len(rp.settled)

	for key, settledAt := range rp.settled {
		if now.Sub(settledAt) > rp.ttl {
			delete(rp.settled, key)
		}
	}

	cleanedCount := initialCount - len(rp.settled)
	if cleanedCount > 0 {
		logging.Infof("Replay protection cleanup: removed %d expired payment ids, remaining: %d", cleanedCount, len(rp.settled))
	}
}

// GetStats returns cache statistics
func (rp *ReplayProtection) GetStats() map[string]interface{} {
	rp.mutex.RLock()
	defer rp.mutex.RUnlock()

	return map[string]interface{}{
		"total_settled":    len(rp.settled),
		"cleanup_interval": rp.cleanupInterval.String(),
		"ttl":              rp.ttl.String(),
	}
}

// Stop stops the cleanup goroutine
func (rp *ReplayProtection) Stop() {
	rp.stopOnce.Do(func() { close(rp.stopCleanup) })
}
