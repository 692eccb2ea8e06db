package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
)

// CSV dumps the indicator table of an underlying to <dir>/<token>.csv.
type CSV struct {
	dir string
}

// NewCSV returns nil when export.csv_dir is empty.
func NewCSV(cfg *config.Config) *CSV {
	if cfg.Export.CSVDir == "" {
		return nil
	}
	return &CSV{dir: cfg.Export.CSVDir}
}

func NewCSVDir(dir string) *CSV { return &CSV{dir: dir} }

// cell prints an unavailable indicator as an empty field.
type cell models.Value

func (c cell) MarshalCSV() (string, error) {
	if !c.OK {
		return "", nil
	}
	return strconv.FormatFloat(c.V, 'f', -1, 64), nil
}

type row struct {
	Time      string  `csv:"time"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
	HAOpen    float64 `csv:"ha_open"`
	HAHigh    float64 `csv:"ha_high"`
	HALow     float64 `csv:"ha_low"`
	HAClose   float64 `csv:"ha_close"`
	ATR       cell    `csv:"atr"`
	RSIBase   cell    `csv:"rsi"`
	RSIEntry  cell    `csv:"rsi_entry_filter"`
	RSITrend  cell    `csv:"rsi_trend_filter"`
	InSession bool    `csv:"in_session"`
}

func (e *CSV) Export(key string, rows []models.IndicatorSnapshot) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("export dir: %w", err)
	}
	out := make([]*row, 0, len(rows))
	for _, s := range rows {
		out = append(out, &row{
			Time:      s.Time.Format(time.RFC3339),
			Open:      s.Open,
			High:      s.High,
			Low:       s.Low,
			Close:     s.Close,
			Volume:    s.Volume,
			HAOpen:    s.HAOpen,
			HAHigh:    s.HAHigh,
			HALow:     s.HALow,
			HAClose:   s.HAClose,
			ATR:       cell(s.ATR),
			RSIBase:   cell(s.RSIBase),
			RSIEntry:  cell(s.RSIEntry),
			RSITrend:  cell(s.RSITrend),
			InSession: s.InSession,
		})
	}

	path := filepath.Join(e.dir, key+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := gocsv.MarshalFile(&out, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
