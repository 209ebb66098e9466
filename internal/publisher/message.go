package publisher

import (
	"fmt"
	"strings"

	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// twitterNameLimit keeps the product name short enough for the 280-char
// tweet budget.
const twitterNameLimit = 50

// FormatMessage renders the alert text for one change record. compact mode
// truncates the product name and omits the previous-price line (Twitter);
// full mode includes everything (Threads, email body).
func FormatMessage(rec model.ChangeRecord, compact bool) string {
	arrow := "↓"
	if rec.ChangeRatePercent > 0 {
		arrow = "↑"
	}
	rateStr := fmt.Sprintf("%.2f%s", absFloat(rec.ChangeRatePercent), arrow)

	availability := string(rec.CurrentAvailability)
	if rec.PreviousAvailability != rec.CurrentAvailability {
		switch rec.CurrentAvailability {
		case model.InStock:
			availability += "（再入荷）"
		case model.OutOfStock:
			availability += "（品切れ）"
		}
	}

	name := rec.Name
	if compact {
		name = truncate(name, twitterNameLimit)
	}

	var b strings.Builder
	b.WriteString("【価格変動】\n")
	fmt.Fprintf(&b, "商品名：%s\n", name)
	fmt.Fprintf(&b, "価格：%s円（%s%%）\n", groupDigits(rec.CurrentPrice), rateStr)
	if !compact {
		fmt.Fprintf(&b, "前回：%s円\n", groupDigits(rec.PreviousPrice))
	}
	fmt.Fprintf(&b, "在庫：%s\n", availability)
	fmt.Fprintf(&b, "販売：%s\n", rec.ShopName)
	b.WriteString(rec.AffiliateURL)
	return b.String()
}

// truncate shortens s to at most max runes, appending "..." when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// groupDigits renders n with comma thousand separators (12,800).
func groupDigits(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
