// Package features encodes transactions as fixed-order numeric vectors.
//
// The vector layout is a contract shared by the model trainer and the online
// scorer: both sides must agree on index order or scores are meaningless.
// Extraction is pure and total: any input that is absent or malformed
// contributes 0 to its slot, never an error.
package features

import (
	"strings"
	"time"
)

// Channel identifies how a transaction was initiated.
type Channel string

const (
	ChannelCard          Channel = "card"
	ChannelTransfer      Channel = "transfer"
	ChannelWallet        Channel = "wallet"
	ChannelInternational Channel = "international"
)

// Transaction is the immutable input to feature extraction.
// Identity is an opaque ID assigned by the caller or generated at ingestion.
type Transaction struct {
	ID          string         `json:"id"`
	Amount      float64        `json:"amount"`
	SenderID    string         `json:"senderId"`
	RecipientID string         `json:"recipientId"`
	Channel     Channel        `json:"channel"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SenderHistory carries the historical context needed for extraction.
// A zero value is valid and means "no history": every derived feature
// defaults to 0.
type SenderHistory struct {
	SenderTxCount    int       // total transactions sent by this sender
	RecipientTxCount int       // total transactions received by the recipient
	LastTxAt         time.Time // zero if the sender has no prior transactions
	AvgAmount        float64   // sender's historical average amount, 0 if unknown
	RecipientSeen    bool      // sender has paid this recipient before
	LastDeviceID     string    // device used on the sender's previous transaction
}

// Count is the fixed feature vector length.
const Count = 10

// Feature vector slot indices. Order is a trainer/scorer contract.
const (
	IdxAmount          = 0
	IdxHourOfDay       = 1
	IdxDayOfWeek       = 2
	IdxSenderTxCount   = 3
	IdxRecipientTxCnt  = 4
	IdxSecondsSinceTx  = 5
	IdxAmountDeviation = 6
	IdxNewRecipient    = 7
	IdxInternational   = 8
	IdxDeviceChanged   = 9
)

// Names lists feature names in vector order, for explanations and debugging.
var Names = [Count]string{
	"amount",
	"hour_of_day",
	"day_of_week",
	"sender_tx_count",
	"recipient_tx_count",
	"seconds_since_last_tx",
	"amount_deviation",
	"is_new_recipient",
	"is_international",
	"device_changed",
}

// Vector is a fixed-order feature encoding of a transaction.
type Vector []float64

// Extract converts a transaction plus sender history into a feature vector.
// Pure and deterministic: time-derived features use the transaction's own
// timestamp in UTC so training and inference see identical encodings.
func Extract(tx Transaction, hist SenderHistory) Vector {
	v := make(Vector, Count)

	if tx.Amount > 0 {
		v[IdxAmount] = tx.Amount
	}

	if !tx.Timestamp.IsZero() {
		utc := tx.Timestamp.UTC()
		v[IdxHourOfDay] = float64(utc.Hour())
		v[IdxDayOfWeek] = float64(utc.Weekday())
	}

	v[IdxSenderTxCount] = float64(hist.SenderTxCount)
	v[IdxRecipientTxCnt] = float64(hist.RecipientTxCount)

	if !hist.LastTxAt.IsZero() && !tx.Timestamp.IsZero() {
		secs := tx.Timestamp.Sub(hist.LastTxAt).Seconds()
		if secs > 0 {
			v[IdxSecondsSinceTx] = secs
		}
	}

	if hist.AvgAmount > 0 && tx.Amount > 0 {
		dev := tx.Amount - hist.AvgAmount
		if dev < 0 {
			dev = -dev
		}
		v[IdxAmountDeviation] = dev
	}

	if !hist.RecipientSeen {
		v[IdxNewRecipient] = 1
	}

	if isInternational(tx) {
		v[IdxInternational] = 1
	}

	if deviceChanged(tx, hist) {
		v[IdxDeviceChanged] = 1
	}

	return v
}

// isInternational reports whether the transaction crosses a border: either
// the channel says so, or sender/recipient country metadata disagree.
func isInternational(tx Transaction) bool {
	if tx.Channel == ChannelInternational {
		return true
	}
	from := metaString(tx.Metadata, "senderCountry")
	to := metaString(tx.Metadata, "recipientCountry")
	return from != "" && to != "" && !strings.EqualFold(from, to)
}

// deviceChanged reports whether the transaction came from a different device
// than the sender's previous one. Unknown devices on either side count as
// unchanged; absence of data never raises a flag.
func deviceChanged(tx Transaction, hist SenderHistory) bool {
	dev := metaString(tx.Metadata, "deviceId")
	return dev != "" && hist.LastDeviceID != "" && dev != hist.LastDeviceID
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
