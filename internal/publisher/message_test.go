package publisher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

func sampleRecord() model.ChangeRecord {
	return model.ChangeRecord{
		Barcode:              "4901234567894",
		Name:                 "テスト商品",
		CurrentPrice:         9000,
		PreviousPrice:        10000,
		ChangeRatePercent:    -10,
		CurrentAvailability:  model.InStock,
		PreviousAvailability: model.InStock,
		ShopName:             "テストショップ",
		AffiliateURL:         "https://hb.afl.rakuten.co.jp/item",
	}
}

func TestFormatMessageFull(t *testing.T) {
	msg := FormatMessage(sampleRecord(), false)

	assert.True(t, strings.HasPrefix(msg, "【価格変動】\n"))
	assert.Contains(t, msg, "商品名：テスト商品")
	assert.Contains(t, msg, "価格：9,000円（10.00↓%）")
	assert.Contains(t, msg, "前回：10,000円")
	assert.Contains(t, msg, "在庫：在庫あり")
	assert.Contains(t, msg, "販売：テストショップ")
	assert.True(t, strings.HasSuffix(msg, "https://hb.afl.rakuten.co.jp/item"))
}

func TestFormatMessageCompactOmitsPreviousPrice(t *testing.T) {
	msg := FormatMessage(sampleRecord(), true)
	assert.NotContains(t, msg, "前回")
}

func TestFormatMessageCompactTruncatesName(t *testing.T) {
	rec := sampleRecord()
	rec.Name = strings.Repeat("あ", 60)

	msg := FormatMessage(rec, true)
	assert.Contains(t, msg, strings.Repeat("あ", 47)+"...")
	assert.NotContains(t, msg, strings.Repeat("あ", 48))

	full := FormatMessage(rec, false)
	assert.Contains(t, full, rec.Name)
}

func TestFormatMessagePriceRiseArrow(t *testing.T) {
	rec := sampleRecord()
	rec.CurrentPrice = 11000
	rec.ChangeRatePercent = 10

	msg := FormatMessage(rec, false)
	assert.Contains(t, msg, "10.00↑")
}

func TestFormatMessageRestockSuffix(t *testing.T) {
	rec := sampleRecord()
	rec.PreviousAvailability = model.OutOfStock

	msg := FormatMessage(rec, false)
	assert.Contains(t, msg, "在庫：在庫あり（再入荷）")
}

func TestFormatMessageSoldOutSuffix(t *testing.T) {
	rec := sampleRecord()
	rec.CurrentAvailability = model.OutOfStock

	msg := FormatMessage(rec, false)
	assert.Contains(t, msg, "在庫：在庫なし（品切れ）")
}

func TestGroupDigits(t *testing.T) {
	cases := map[int]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		12800:   "12,800",
		1234567: "1,234,567",
		-9000:   "-9,000",
	}
	for n, want := range cases {
		assert.Equal(t, want, groupDigits(n), "n=%d", n)
	}
}
