package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// stubHistory feeds the gate canned history entries.
type stubHistory struct {
	entries map[string]model.HistoryEntry
}

func (s *stubHistory) Get(barcode string) (model.HistoryEntry, bool) {
	e, ok := s.entries[barcode]
	return e, ok
}

var gateNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)

func newTestGate(entries map[string]model.HistoryEntry) *Gate {
	if entries == nil {
		entries = map[string]model.HistoryEntry{}
	}
	g := NewGate(&stubHistory{entries: entries}, DefaultGateConfig())
	g.now = func() time.Time { return gateNow }
	return g
}

func change(barcode string, prev, cur int, prevAvail, curAvail model.Availability) model.ChangeRecord {
	return model.ChangeRecord{
		Barcode:              barcode,
		Name:                 "テスト商品",
		CurrentPrice:         cur,
		PreviousPrice:        prev,
		ChangeRatePercent:    model.ChangeRate(cur, prev),
		CurrentAvailability:  curAvail,
		PreviousAvailability: prevAvail,
		Timestamp:            model.FormatTime(gateNow),
	}
}

func historyEntry(price int, notifiedAt time.Time) model.HistoryEntry {
	return model.HistoryEntry{
		ProductName:       "テスト商品",
		Price:             price,
		LastNotifiedTime:  model.FormatTime(notifiedAt),
		NotificationCount: 1,
	}
}

func TestGateQualifyingDropNotifies(t *testing.T) {
	g := newTestGate(nil)

	// 10000 → 9000 in stock: -10% and 1000 yen, no history entry
	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 10000, 9000, model.InStock, model.InStock),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "4901234567894", out[0].Barcode)
}

func TestGateRateBelowMinimum(t *testing.T) {
	g := newTestGate(nil)

	// -0.5% is under the 1% floor even though the amount clears 500 yen
	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 200000, 199000, model.InStock, model.InStock),
	})
	assert.Empty(t, out)
}

func TestGateAmountBelowMinimum(t *testing.T) {
	g := newTestGate(nil)

	// -10% but only 100 yen on a cheap item
	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 1000, 900, model.InStock, model.InStock),
	})
	assert.Empty(t, out)
}

func TestGateOutOfStockNeverNotifies(t *testing.T) {
	g := newTestGate(nil)

	// A massive drop while out of stock stays suppressed: the stock gate
	// is decision-relevant regardless of the direction gate outcome
	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 10000, 5000, model.InStock, model.OutOfStock),
	})
	assert.Empty(t, out)
}

func TestGateIntervalNotElapsed(t *testing.T) {
	g := newTestGate(map[string]model.HistoryEntry{
		"4901234567894": historyEntry(12000, gateNow.Add(-2*time.Hour)),
	})

	// Magnitude qualifies but the last notification was 2h ago (< 72h)
	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 10000, 9000, model.InStock, model.InStock),
	})
	assert.Empty(t, out)
}

func TestGateAnchorsToLastNotifiedPrice(t *testing.T) {
	g := newTestGate(map[string]model.HistoryEntry{
		"4901234567894": historyEntry(9100, gateNow.Add(-100*time.Hour)),
	})

	// 10000 to 9000 passes the fresh-delta gates, but 9000 is only ~1.1%
	// away from the last notified 9100: oscillation, not news
	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 10000, 9000, model.InStock, model.InStock),
	})
	assert.Empty(t, out)
}

func TestGatePriceRiseNeverNotifies(t *testing.T) {
	g := newTestGate(nil)

	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 9000, 12000, model.InStock, model.InStock),
	})
	assert.Empty(t, out)
}

func TestGateRestockWithUnchangedPrice(t *testing.T) {
	g := newTestGate(nil)

	// Restock policy: a zero-rate restock is exempt from the magnitude
	// gates and notifies via the restock clause
	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 10000, 10000, model.OutOfStock, model.InStock),
	})
	require.Len(t, out, 1)
	assert.True(t, out[0].Restocked())
}

func TestGateRestockStillBoundByInterval(t *testing.T) {
	g := newTestGate(map[string]model.HistoryEntry{
		"4901234567894": historyEntry(20000, gateNow.Add(-2*time.Hour)),
	})

	// The restock exemption covers magnitude only, not anti-spam
	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 10000, 10000, model.OutOfStock, model.InStock),
	})
	assert.Empty(t, out)
}

func TestGateDuplicateRecentNotification(t *testing.T) {
	g := newTestGate(map[string]model.HistoryEntry{
		// Notified 100h ago: outside the 24h duplicate window, and both
		// the interval and magnitude checks pass (100h > 72h, far price)
		"4901234567800": historyEntry(15000, gateNow.Add(-100*time.Hour)),
		// Notified 10h ago at 9005: same price within the window
		"4901234567894": historyEntry(9005, gateNow.Add(-10*time.Hour)),
	})

	out := g.Filter([]model.ChangeRecord{
		change("4901234567800", 10000, 9000, model.InStock, model.InStock),
		change("4901234567894", 10000, 9000, model.InStock, model.InStock),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "4901234567800", out[0].Barcode)
}

func TestGateDeduplicatesByBarcode(t *testing.T) {
	g := newTestGate(nil)

	first := change("4901234567894", 10000, 9000, model.InStock, model.InStock)
	second := change("4901234567894", 10000, 8500, model.InStock, model.InStock)
	out := g.Filter([]model.ChangeRecord{first, second})

	require.Len(t, out, 1)
	assert.Equal(t, 9000, out[0].CurrentPrice, "first occurrence wins")
}

func TestGateIdempotentOnFixedHistory(t *testing.T) {
	g := newTestGate(map[string]model.HistoryEntry{
		"4901234567801": historyEntry(20000, gateNow.Add(-200*time.Hour)),
	})

	in := []model.ChangeRecord{
		change("4901234567894", 10000, 9000, model.InStock, model.InStock),
		change("4901234567801", 20000, 18000, model.InStock, model.InStock),
		change("4901234567802", 1000, 900, model.InStock, model.InStock),
	}
	first := g.Filter(in)
	second := g.Filter(in)
	assert.Equal(t, first, second, "filter must not depend on its own prior runs")
}

func TestGateUnparsableHistoryTreatedAsNone(t *testing.T) {
	g := newTestGate(map[string]model.HistoryEntry{
		"4901234567894": {Price: 9100, LastNotifiedTime: "not-a-time"},
	})

	out := g.Filter([]model.ChangeRecord{
		change("4901234567894", 10000, 9000, model.InStock, model.InStock),
	})
	assert.Len(t, out, 1)
}
