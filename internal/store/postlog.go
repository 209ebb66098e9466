package store

import (
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

var postLogColumns = []string{
	"timestamp", "jan_code", "product_name", "current_price",
	"price_change_rate", "success", "post_id", "error",
}

// PostRecord is one posting attempt, as written to a platform log.
type PostRecord struct {
	Timestamp time.Time
	Barcode   string
	Name      string
	Price     int
	Rate      float64
	Success   bool
	PostID    string
	Error     string
}

// PostingLogs manages the append-only per-platform posting logs
// ({platform}_posting_log.csv). Reconciliation reads them back to confirm
// which barcodes were actually delivered during the current run.
type PostingLogs struct {
	dir string
}

// NewPostingLogs creates a log set rooted at dir.
func NewPostingLogs(dir string) *PostingLogs {
	return &PostingLogs{dir: dir}
}

func (l *PostingLogs) pathFor(platform string) string {
	return filepath.Join(l.dir, platform+"_posting_log.csv")
}

// Append adds one row to the platform's log, creating it with a header row
// when absent.
func (l *PostingLogs) Append(platform string, rec PostRecord) error {
	path := l.pathFor(platform)
	writeHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperr.New(apperr.Persistence, "store.PostingLogs.Append", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(postLogColumns); err != nil {
			return apperr.New(apperr.Persistence, "store.PostingLogs.Append", err)
		}
	}
	row := []string{
		model.FormatTime(rec.Timestamp),
		rec.Barcode,
		rec.Name,
		strconv.Itoa(rec.Price),
		strconv.FormatFloat(rec.Rate, 'f', 2, 64),
		strconv.FormatBool(rec.Success),
		rec.PostID,
		rec.Error,
	}
	if err := w.Write(row); err != nil {
		return apperr.New(apperr.Persistence, "store.PostingLogs.Append", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperr.New(apperr.Persistence, "store.PostingLogs.Append", err)
	}
	return nil
}

// ConfirmedSince scans every *_posting_log.csv under the data directory and
// returns the barcodes with a successful post at or after cutoff. Unreadable
// logs are skipped with a warning so one corrupt file cannot block
// reconciliation of the others.
func (l *PostingLogs) ConfirmedSince(cutoff time.Time) map[string]bool {
	confirmed := make(map[string]bool)

	matches, err := filepath.Glob(filepath.Join(l.dir, "*_posting_log.csv"))
	if err != nil {
		log.Warn().Err(err).Msg("posting log scan failed")
		return confirmed
	}

	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("posting log unreadable, skipping")
			continue
		}
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		rows, err := r.ReadAll()
		f.Close()
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("posting log parse failed, skipping")
			continue
		}
		if len(rows) < 2 {
			continue
		}

		col := make(map[string]int, len(rows[0]))
		for i, name := range rows[0] {
			col[strings.TrimSpace(name)] = i
		}
		tsIdx, okTS := col["timestamp"]
		janIdx, okJAN := col["jan_code"]
		sucIdx, okSuc := col["success"]
		if !okTS || !okJAN || !okSuc {
			continue
		}

		for _, row := range rows[1:] {
			if len(row) <= tsIdx || len(row) <= janIdx || len(row) <= sucIdx {
				continue
			}
			ts, err := model.ParseTime(row[tsIdx])
			if err != nil || ts.Before(cutoff) {
				continue
			}
			if !parseBool(row[sucIdx]) {
				continue
			}
			confirmed[strings.TrimSpace(row[janIdx])] = true
		}
	}
	return confirmed
}
