package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/modules/health/service"
)

type streams []string

func (s streams) Active() []string { return s }

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadyz(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state, nil)

	assert.Equal(t, http.StatusOK, get(t, mux, "/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)

	state.SetReady(true)
	assert.Equal(t, http.StatusOK, get(t, mux, "/readyz").Code)
}

func TestHealthzReportsInstrumentsAndStreams(t *testing.T) {
	state := service.NewState()
	state.SetReady(true)
	state.TouchCycle("26000", time.Now())
	mux := NewMux(state, streams{"48211"})

	rec := get(t, mux, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ready       bool               `json:"ready"`
		Instruments []service.CycleAge `json:"instruments"`
		Streams     []string           `json:"streams"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	require.Len(t, body.Instruments, 1)
	assert.Equal(t, "26000", body.Instruments[0].Token)
	assert.Equal(t, []string{"48211"}, body.Streams)
}

func TestMetricsEndpoint(t *testing.T) {
	mux := NewMux(service.NewState(), nil)
	rec := get(t, mux, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
