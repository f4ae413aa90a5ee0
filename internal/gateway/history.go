package gateway

import (
	"sync"
	"time"

	"github.com/verdict-labs/verdict/internal/features"
)

// History accumulates per-sender transaction aggregates so the feature
// extractor sees the same context at inference time that the trainer saw
// when its samples were labeled.
type History struct {
	mu      sync.RWMutex
	senders map[string]*senderStats
	// recipientTotals counts transactions received per recipient across
	// all senders.
	recipientTotals map[string]int
	records         int
}

type senderStats struct {
	txCount      int
	totalAmount  float64
	lastTxAt     time.Time
	lastSeen     time.Time
	lastDeviceID string
	recipients   map[string]struct{}
}

const (
	maxTrackedSenders    = 100000
	maxTrackedRecipients = 200000
	senderIdleAfter      = 24 * time.Hour
	sweepEvery           = 4096
)

// NewHistory creates an empty history tracker.
func NewHistory() *History {
	return &History{
		senders:         make(map[string]*senderStats),
		recipientTotals: make(map[string]int),
	}
}

// Snapshot returns the sender's context for one transaction. Unknown
// senders get a zero history, which extracts to all-default features.
func (h *History) Snapshot(tx *features.Transaction) features.SenderHistory {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var hist features.SenderHistory
	hist.RecipientTxCount = h.recipientTotals[tx.RecipientID]

	s, ok := h.senders[tx.SenderID]
	if !ok {
		return hist
	}
	hist.SenderTxCount = s.txCount
	hist.LastTxAt = s.lastTxAt
	hist.LastDeviceID = s.lastDeviceID
	if s.txCount > 0 {
		hist.AvgAmount = s.totalAmount / float64(s.txCount)
	}
	_, hist.RecipientSeen = s.recipients[tx.RecipientID]
	return hist
}

// Record folds a completed transaction into the sender's aggregates.
func (h *History) Record(tx *features.Transaction) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.senders[tx.SenderID]
	if !ok {
		s = &senderStats{recipients: make(map[string]struct{})}
		h.senders[tx.SenderID] = s
	}
	s.txCount++
	if tx.Amount > 0 {
		s.totalAmount += tx.Amount
	}
	s.lastTxAt = tx.Timestamp
	s.lastSeen = time.Now()
	if dev, ok := tx.Metadata["deviceId"].(string); ok && dev != "" {
		s.lastDeviceID = dev
	}
	s.recipients[tx.RecipientID] = struct{}{}
	h.recipientTotals[tx.RecipientID]++

	h.records++
	if h.records%sweepEvery == 0 || len(h.senders) > maxTrackedSenders {
		h.sweepLocked()
	}
}

// sweepLocked drops idle senders and caps both maps (caller holds lock).
// History is advisory feature context, so evicting a tracked sender only
// degrades its next snapshot to "no history", never breaks correctness.
func (h *History) sweepLocked() {
	cutoff := time.Now().Add(-senderIdleAfter)
	for id, s := range h.senders {
		if s.lastSeen.Before(cutoff) {
			delete(h.senders, id)
		}
	}
	for id := range h.senders {
		if len(h.senders) <= maxTrackedSenders {
			break
		}
		delete(h.senders, id)
	}
	for id := range h.recipientTotals {
		if len(h.recipientTotals) <= maxTrackedRecipients {
			break
		}
		delete(h.recipientTotals, id)
	}
}
