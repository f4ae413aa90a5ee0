package features

import (
	"testing"
	"time"
)

func baseTx() Transaction {
	return Transaction{
		ID:          "txn_1",
		Amount:      125.50,
		SenderID:    "acct_sender",
		RecipientID: "acct_recipient",
		Channel:     ChannelTransfer,
		Timestamp:   time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC), // Wednesday
	}
}

func TestExtractFullContext(t *testing.T) {
	tx := baseTx()
	tx.Metadata = map[string]any{"deviceId": "dev_b"}
	hist := SenderHistory{
		SenderTxCount:    42,
		RecipientTxCount: 7,
		LastTxAt:         tx.Timestamp.Add(-90 * time.Second),
		AvgAmount:        100.50,
		RecipientSeen:    true,
		LastDeviceID:     "dev_a",
	}

	v := Extract(tx, hist)

	if len(v) != Count {
		t.Fatalf("vector length = %d, want %d", len(v), Count)
	}
	if v[IdxAmount] != 125.50 {
		t.Errorf("amount = %v", v[IdxAmount])
	}
	if v[IdxHourOfDay] != 14 {
		t.Errorf("hour = %v, want 14", v[IdxHourOfDay])
	}
	if v[IdxDayOfWeek] != 3 {
		t.Errorf("weekday = %v, want 3 (Wednesday)", v[IdxDayOfWeek])
	}
	if v[IdxSenderTxCount] != 42 || v[IdxRecipientTxCnt] != 7 {
		t.Errorf("tx counts = %v, %v", v[IdxSenderTxCount], v[IdxRecipientTxCnt])
	}
	if v[IdxSecondsSinceTx] != 90 {
		t.Errorf("seconds since last = %v, want 90", v[IdxSecondsSinceTx])
	}
	if v[IdxAmountDeviation] != 25 {
		t.Errorf("deviation = %v, want 25", v[IdxAmountDeviation])
	}
	if v[IdxNewRecipient] != 0 {
		t.Errorf("known recipient should score 0, got %v", v[IdxNewRecipient])
	}
	if v[IdxDeviceChanged] != 1 {
		t.Errorf("device change should score 1, got %v", v[IdxDeviceChanged])
	}
}

func TestExtractNoHistoryDefaultsToZero(t *testing.T) {
	tx := Transaction{SenderID: "s", RecipientID: "r"}

	v := Extract(tx, SenderHistory{})

	// Zero timestamp, zero amount, no history: only is_new_recipient fires.
	for i, val := range v {
		if i == IdxNewRecipient {
			if val != 1 {
				t.Errorf("is_new_recipient = %v, want 1", val)
			}
			continue
		}
		if val != 0 {
			t.Errorf("feature %s = %v, want 0", Names[i], val)
		}
	}
}

func TestExtractNegativeAmountContributesZero(t *testing.T) {
	tx := baseTx()
	tx.Amount = -50

	v := Extract(tx, SenderHistory{AvgAmount: 100})

	if v[IdxAmount] != 0 {
		t.Errorf("negative amount should contribute 0, got %v", v[IdxAmount])
	}
	if v[IdxAmountDeviation] != 0 {
		t.Errorf("deviation with invalid amount should be 0, got %v", v[IdxAmountDeviation])
	}
}

func TestExtractHourIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	tx := baseTx()
	tx.Timestamp = time.Date(2025, 6, 18, 3, 0, 0, 0, loc) // 22:00 UTC previous day

	v := Extract(tx, SenderHistory{})

	if v[IdxHourOfDay] != 22 {
		t.Errorf("hour = %v, want 22 (UTC)", v[IdxHourOfDay])
	}
	if v[IdxDayOfWeek] != 2 {
		t.Errorf("weekday = %v, want 2 (Tuesday in UTC)", v[IdxDayOfWeek])
	}
}

func TestInternationalDetection(t *testing.T) {
	tx := baseTx()
	tx.Channel = ChannelInternational
	if v := Extract(tx, SenderHistory{}); v[IdxInternational] != 1 {
		t.Error("international channel should set flag")
	}

	tx = baseTx()
	tx.Metadata = map[string]any{"senderCountry": "US", "recipientCountry": "NG"}
	if v := Extract(tx, SenderHistory{}); v[IdxInternational] != 1 {
		t.Error("country mismatch should set flag")
	}

	tx.Metadata = map[string]any{"senderCountry": "us", "recipientCountry": "US"}
	if v := Extract(tx, SenderHistory{}); v[IdxInternational] != 0 {
		t.Error("same country (case-insensitive) should not set flag")
	}
}

func TestDeviceChangeRequiresBothSides(t *testing.T) {
	tx := baseTx()
	tx.Metadata = map[string]any{"deviceId": "dev_new"}

	// No previous device known: no flag.
	if v := Extract(tx, SenderHistory{}); v[IdxDeviceChanged] != 0 {
		t.Error("unknown previous device should not flag")
	}

	// Same device: no flag.
	if v := Extract(tx, SenderHistory{LastDeviceID: "dev_new"}); v[IdxDeviceChanged] != 0 {
		t.Error("same device should not flag")
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	tx := baseTx()
	tx.Metadata = map[string]any{"deviceId": "dev_x", "senderCountry": "US", "recipientCountry": "GB"}
	hist := SenderHistory{SenderTxCount: 5, AvgAmount: 80, LastTxAt: tx.Timestamp.Add(-time.Hour)}

	a := Extract(tx, hist)
	b := Extract(tx, hist)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("extraction not deterministic at %s: %v != %v", Names[i], a[i], b[i])
		}
	}
}
