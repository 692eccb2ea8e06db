package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/models"
)

const sample = `
- token: "45001"
  exchange: NFO
  expiry: "2024-01-04"
  strike_price: 21900
  position: CE
  symbol: NIFTY04JAN2421900CE
- token: "45002"
  exchange: NFO
  expiry: "2024-01-04"
  strike_price: 21900
  position: pe
  symbol: NIFTY04JAN2421900PE
`

func TestLookupByStrikeAndSide(t *testing.T) {
	l, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	ce, ok := l.Lookup(21900, models.Call)
	require.True(t, ok)
	assert.Equal(t, "45001", ce.Token)
	assert.Equal(t, "NFO", ce.Exchange)

	pe, ok := l.Lookup(21900.0000001, models.Put)
	require.True(t, ok)
	assert.Equal(t, "45002", pe.Token)

	_, ok = l.Lookup(22000, models.Call)
	assert.False(t, ok)

	assert.Equal(t, "NIFTY04JAN2421900PE", l.Symbol("45002"))
	assert.Empty(t, l.Symbol("99999"))
}

func TestParseWrappedTable(t *testing.T) {
	l, err := Parse([]byte("instruments:\n  - {token: \"1\", strike_price: 100, position: CE, symbol: A}\n"))
	require.NoError(t, err)
	_, ok := l.Lookup(100, models.Call)
	assert.True(t, ok)
}

func TestNewRejectsBadRows(t *testing.T) {
	_, err := New([]models.Instrument{{Token: "1", Strike: 100, Side: "XX"}})
	assert.Error(t, err)

	_, err = New([]models.Instrument{{Strike: 100, Side: models.Call}})
	assert.Error(t, err)

	_, err = New([]models.Instrument{
		{Token: "1", Strike: 100, Side: models.Call},
		{Token: "2", Strike: 100, Side: models.Call},
	})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strikes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
