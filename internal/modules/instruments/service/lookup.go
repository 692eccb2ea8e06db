package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
)

type table struct {
	Instruments []models.Instrument `yaml:"instruments"`
}

type strikeKey struct {
	strike float64
	side   models.OptionSide
}

// Lookup is the read-only option table: (strike, side) -> instrument and
// token -> symbol. Safe for concurrent readers once built.
type Lookup struct {
	byStrike map[strikeKey]models.Instrument
	symbols  map[string]string
}

func NewLookup(cfg *config.Config, log *zap.Logger) (*Lookup, error) {
	l, err := Load(cfg.Instruments.File)
	if err != nil {
		return nil, err
	}
	log.Info("instrument table loaded", zap.String("file", cfg.Instruments.File), zap.Int("rows", l.Len()))
	return l, nil
}

func Load(path string) (*Lookup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read instrument table")
	}
	return Parse(raw)
}

// Parse accepts either a top-level list or {instruments: [...]}.
func Parse(raw []byte) (*Lookup, error) {
	var rows []models.Instrument
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		var t table
		if err2 := yaml.Unmarshal(raw, &t); err2 != nil {
			return nil, errors.Wrap(err2, "parse instrument table")
		}
		rows = t.Instruments
	}
	return New(rows)
}

func New(rows []models.Instrument) (*Lookup, error) {
	l := &Lookup{
		byStrike: make(map[strikeKey]models.Instrument, len(rows)),
		symbols:  make(map[string]string, len(rows)),
	}
	for i, r := range rows {
		r.Side = models.OptionSide(strings.ToUpper(strings.TrimSpace(string(r.Side))))
		if r.Token == "" {
			return nil, fmt.Errorf("instrument row %d: empty token", i)
		}
		if r.Side != models.Call && r.Side != models.Put {
			return nil, fmt.Errorf("instrument row %d (%s): position must be CE or PE, got %q", i, r.Token, r.Side)
		}
		k := strikeKey{strike: helper.Round(r.Strike, 2), side: r.Side}
		if prev, dup := l.byStrike[k]; dup {
			return nil, fmt.Errorf("instrument row %d: strike %.2f %s already mapped to %s", i, r.Strike, r.Side, prev.Token)
		}
		l.byStrike[k] = r
		l.symbols[r.Token] = r.Symbol
	}
	return l, nil
}

func (l *Lookup) Lookup(strike float64, side models.OptionSide) (models.Instrument, bool) {
	inst, ok := l.byStrike[strikeKey{strike: helper.Round(strike, 2), side: side}]
	return inst, ok
}

// Symbol returns the trading symbol of a derivative token, "" when unknown.
func (l *Lookup) Symbol(token string) string { return l.symbols[token] }

func (l *Lookup) Len() int { return len(l.byStrike) }
