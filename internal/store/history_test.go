package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

func TestHistoryLoadMissingFileStartsFresh(t *testing.T) {
	h := NewHistory(t.TempDir())
	require.NoError(t, h.Load())
	assert.Zero(t, h.Len())
}

func TestHistoryLoadCorruptFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, HistoryFile), []byte("{not json"), 0o644))

	h := NewHistory(dir)
	err := h.Load()
	require.Error(t, err)
	assert.Zero(t, h.Len(), "corrupt history must not leave partial state")
}

func TestHistoryRecordAndRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := NewHistory(dir)
	require.NoError(t, h.Load())

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	h.Record("4901234567894", "テスト商品", 9000, at)
	h.Record("4901234567894", "テスト商品", 8500, at.Add(80*time.Hour))
	require.NoError(t, h.Save())

	h2 := NewHistory(dir)
	require.NoError(t, h2.Load())
	e, ok := h2.Get("4901234567894")
	require.True(t, ok)
	assert.Equal(t, 8500, e.Price)
	assert.Equal(t, 2, e.NotificationCount)
	assert.Equal(t, model.FormatTime(at.Add(80*time.Hour)), e.LastNotifiedTime)
	require.Len(t, e.RecentPrices, 2)
	assert.Equal(t, 9000, e.RecentPrices[0].Price)
	assert.Equal(t, 8500, e.RecentPrices[1].Price)
}

func TestHistoryKeepsBoundedPriceTail(t *testing.T) {
	h := NewHistory(t.TempDir())
	require.NoError(t, h.Load())

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 8; i++ {
		h.Record("4901234567894", "テスト商品", 10000-i*100, at.Add(time.Duration(i)*time.Hour))
	}

	e, ok := h.Get("4901234567894")
	require.True(t, ok)
	require.Len(t, e.RecentPrices, model.RecentPricesKept)
	assert.Equal(t, 9700, e.RecentPrices[0].Price, "oldest surviving point")
	assert.Equal(t, 9300, e.RecentPrices[len(e.RecentPrices)-1].Price)
	assert.Equal(t, 8, e.NotificationCount)
}

func TestHistoryGetReturnsCopy(t *testing.T) {
	h := NewHistory(t.TempDir())
	require.NoError(t, h.Load())
	h.Record("4901234567894", "テスト商品", 9000, time.Now())

	e, _ := h.Get("4901234567894")
	e.RecentPrices[0].Price = 1

	again, _ := h.Get("4901234567894")
	assert.Equal(t, 9000, again.RecentPrices[0].Price)
}
