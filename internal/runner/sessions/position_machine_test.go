package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	strategy "signal_bot/internal/modules/strategy/service"
	tickstream "signal_bot/internal/modules/tick_stream/service"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type fakeEngine struct {
	next   []models.Signal
	evals  int
	resets int
}

func (e *fakeEngine) Evaluate(strategy.Frame) models.Signal {
	e.evals++
	if len(e.next) == 0 {
		return models.NoSignal()
	}
	s := e.next[0]
	e.next = e.next[1:]
	return s
}

func (e *fakeEngine) ResetState() { e.resets++ }

type fakeLookup map[models.OptionSide]models.Instrument

func (l fakeLookup) Lookup(strike float64, side models.OptionSide) (models.Instrument, bool) {
	inst, ok := l[side]
	if !ok || inst.Strike != strike {
		return models.Instrument{}, false
	}
	return inst, true
}

type fakeSubmitter struct {
	ack  bool
	err  error
	subs []models.Submission
}

func (s *fakeSubmitter) Submit(_ context.Context, sub models.Submission) (bool, error) {
	s.subs = append(s.subs, sub)
	return s.ack, s.err
}

type fakeKill struct {
	kill  bool
	calls int
}

func (k *fakeKill) KillRequested(context.Context, string) bool {
	k.calls++
	return k.kill
}

type fakeJournal struct{ events []models.PositionEvent }

func (j *fakeJournal) Record(_ context.Context, ev models.PositionEvent) error {
	j.events = append(j.events, ev)
	return nil
}

type fakeStreams struct {
	started []string
	stopped []string
}

func (s *fakeStreams) StartStream(_ context.Context, _ string, inst models.Instrument) error {
	s.started = append(s.started, inst.Token)
	return nil
}

func (s *fakeStreams) StopStream(_, key string) { s.stopped = append(s.stopped, key) }

type fakeFrame []models.IndicatorSnapshot

func (f fakeFrame) Len() int                          { return len(f) }
func (f fakeFrame) At(i int) models.IndicatorSnapshot { return f[i] }

type harness struct {
	m       *PositionMachine
	engine  *fakeEngine
	submit  *fakeSubmitter
	kill    *fakeKill
	journal *fakeJournal
	streams *fakeStreams
}

func newHarness() *harness {
	h := &harness{streams: &fakeStreams{}}
	return h.build("26000", h.streams)
}

func (h *harness) build(key string, streams StreamStarter) *harness {
	h.engine = &fakeEngine{}
	h.submit = &fakeSubmitter{ack: true}
	h.kill = &fakeKill{}
	h.journal = &fakeJournal{}
	h.m = NewPositionMachine(MachineDeps{
		Engine: h.engine,
		Lookup: fakeLookup{
			models.Call: {Token: "45001", Strike: 21900, Side: models.Call, Symbol: "NIFTY 21900 CE"},
			models.Put:  {Token: "45002", Strike: 22200, Side: models.Put, Symbol: "NIFTY 22200 PE"},
		},
		Submit:  h.submit,
		Kill:    h.kill,
		Journal: h.journal,
		Streams: streams,
	}, MachineConfig{
		Key:          key,
		StrategyCode: "HA_ATR_STRIKE",
		Location:     ist,
		EntryCutoff:  helper.MustClock("11:30"),
		ExitCutoff:   helper.MustClock("14:25"),
	})
	return h
}

func at(hh, mm int) time.Time { return time.Date(2024, 1, 2, hh, mm, 0, 0, ist) }

var frame = fakeFrame{{}, {HAHigh: 22060, HALow: 21995}}

var buyEntry = models.Signal{Kind: models.SignalBuyEntry, Price: 22050, StopLoss: 22000, TakeProfit: 22150, Strike: 21900}

func newBar(now time.Time, ltp float64) CycleInput {
	return CycleInput{Now: now, LastPrice: ltp, NewBar: true, Frame: frame}
}

func (h *harness) openLong(t *testing.T) {
	t.Helper()
	h.engine.next = []models.Signal{buyEntry}
	tr := h.m.Cycle(context.Background(), newBar(at(10, 0), 22050))
	require.Equal(t, StateOpen, tr.To)
}

func TestEntryAcknowledgedOpensPosition(t *testing.T) {
	h := newHarness()
	h.engine.next = []models.Signal{buyEntry}

	tr := h.m.Cycle(context.Background(), newBar(at(10, 0), 22050))

	assert.Equal(t, StateFlat, tr.From)
	assert.Equal(t, StateOpen, tr.To)
	assert.True(t, tr.Changed())

	require.Len(t, h.submit.subs, 1)
	sub := h.submit.subs[0]
	assert.Equal(t, models.SignalBuyEntry, sub.Kind)
	assert.Equal(t, "45001", sub.DerivativeID)
	assert.Equal(t, "26000", sub.UnderlyingKey)
	assert.Equal(t, "HA_ATR_STRIKE", sub.StrategyCode)
	assert.NotEmpty(t, sub.PositionID)

	pos := h.m.Position()
	assert.Equal(t, models.Long, pos.State)
	assert.Equal(t, sub.PositionID, pos.ID)
	assert.Equal(t, 22000.0, pos.StopLoss)
	assert.Equal(t, 22150.0, pos.TakeProfit)
	assert.Equal(t, 22060.0, pos.TrailingExtreme)
	require.NotNil(t, pos.Derivative)
	assert.Equal(t, models.Call, pos.Derivative.Side)

	assert.Equal(t, []string{"45001"}, h.streams.started)
	require.Len(t, h.journal.events, 1)
	assert.Equal(t, "45001", h.journal.events[0].Derivative)
}

func TestShortEntryUsesPut(t *testing.T) {
	h := newHarness()
	h.engine.next = []models.Signal{{Kind: models.SignalSellEntry, Price: 22050, StopLoss: 22100, TakeProfit: 21950, Strike: 22200}}

	tr := h.m.Cycle(context.Background(), newBar(at(10, 0), 22050))

	require.Equal(t, StateOpen, tr.To)
	assert.Equal(t, models.Short, h.m.Position().State)
	assert.Equal(t, "45002", h.submit.subs[0].DerivativeID)
	assert.Equal(t, 21995.0, h.m.Position().TrailingExtreme)
}

func TestEntryWithoutDerivativeStaysFlat(t *testing.T) {
	h := newHarness()
	miss := buyEntry
	miss.Strike = 21800
	h.engine.next = []models.Signal{miss}

	tr := h.m.Cycle(context.Background(), newBar(at(10, 0), 22050))

	assert.Equal(t, StateFlat, tr.To)
	assert.Equal(t, "no_derivative", tr.Reason)
	assert.Empty(t, h.submit.subs)
	assert.Equal(t, 1, h.engine.resets)
	assert.Empty(t, h.streams.started)
}

func TestEntryRejected(t *testing.T) {
	cases := []struct {
		name string
		ack  bool
		err  error
	}{
		{"nack", false, nil},
		{"error", false, errors.New("connection refused")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.submit.ack, h.submit.err = tc.ack, tc.err
			h.engine.next = []models.Signal{buyEntry}

			tr := h.m.Cycle(context.Background(), newBar(at(10, 0), 22050))

			assert.Equal(t, StateFlat, tr.To)
			assert.Equal(t, StateFlat, h.m.State())
			assert.Equal(t, 1, h.engine.resets)
			assert.Equal(t, models.Flat, h.m.Position().State)
			assert.Empty(t, h.streams.started)
		})
	}
}

func TestEntryAfterCutoffIgnored(t *testing.T) {
	h := newHarness()
	h.engine.next = []models.Signal{buyEntry}

	tr := h.m.Cycle(context.Background(), newBar(at(11, 30), 22050))

	assert.Equal(t, StateFlat, tr.To)
	assert.Equal(t, "entry_cutoff", tr.Reason)
	assert.Empty(t, h.submit.subs)
	assert.Equal(t, 1, h.engine.resets)
}

func TestNoSecondEntryWhileOpen(t *testing.T) {
	h := newHarness()
	h.openLong(t)

	h.engine.next = []models.Signal{buyEntry}
	tr := h.m.Cycle(context.Background(), newBar(at(10, 5), 22060))

	assert.Equal(t, StateOpen, tr.To)
	assert.Len(t, h.submit.subs, 1)
}

func TestHardStopBeatsKillAndEngine(t *testing.T) {
	h := newHarness()
	h.openLong(t)
	h.kill.kill = true
	evals := h.engine.evals

	tr := h.m.Cycle(context.Background(), newBar(at(10, 5), 21990))

	assert.Equal(t, StateFlat, tr.To)
	assert.Equal(t, "stop_loss", tr.Reason)
	assert.Equal(t, models.SignalBuyExit, tr.Signal.Kind)
	assert.Equal(t, 0, h.kill.calls)
	assert.Equal(t, evals, h.engine.evals)
	assert.Equal(t, 1, h.engine.resets)

	require.Len(t, h.submit.subs, 2)
	exit := h.submit.subs[1]
	assert.Equal(t, models.SignalBuyExit, exit.Kind)
	assert.Equal(t, h.submit.subs[0].PositionID, exit.PositionID)
	assert.Equal(t, "45001", exit.DerivativeID)
	assert.Equal(t, []string{"45001"}, h.streams.stopped)
}

func TestHardTargetShort(t *testing.T) {
	h := newHarness()
	h.engine.next = []models.Signal{{Kind: models.SignalSellEntry, Price: 22050, StopLoss: 22100, TakeProfit: 21950, Strike: 22200}}
	require.Equal(t, StateOpen, h.m.Cycle(context.Background(), newBar(at(10, 0), 22050)).To)

	tr := h.m.Cycle(context.Background(), CycleInput{Now: at(10, 1), LastPrice: 21950})

	assert.Equal(t, "target", tr.Reason)
	assert.Equal(t, models.SignalSellExit, h.submit.subs[1].Kind)
}

func TestExitCutoffForcesExit(t *testing.T) {
	h := newHarness()
	h.openLong(t)

	tr := h.m.Cycle(context.Background(), CycleInput{Now: at(14, 25), LastPrice: 22060})

	assert.Equal(t, StateFlat, tr.To)
	assert.Equal(t, "exit_cutoff", tr.Reason)
}

func TestAdminKill(t *testing.T) {
	h := newHarness()
	h.openLong(t)
	h.kill.kill = true

	tr := h.m.Cycle(context.Background(), CycleInput{Now: at(10, 1), LastPrice: 22060})

	assert.Equal(t, "admin_kill", tr.Reason)
	assert.Equal(t, 1, h.kill.calls)
	assert.Equal(t, 1, h.engine.resets)
	assert.Equal(t, models.Flat, h.m.Position().State)
}

func TestEngineExitOnNewBarOnly(t *testing.T) {
	h := newHarness()
	h.openLong(t)
	h.engine.next = []models.Signal{{Kind: models.SignalBuyExit, Price: 22100, Reason: "rsi_reversal"}}

	// same bar: no evaluation
	tr := h.m.Cycle(context.Background(), CycleInput{Now: at(10, 1), LastPrice: 22100, Frame: frame})
	assert.Equal(t, StateOpen, tr.To)
	assert.Equal(t, 1, h.engine.evals)

	tr = h.m.Cycle(context.Background(), newBar(at(10, 2), 22100))
	assert.Equal(t, StateFlat, tr.To)
	assert.Equal(t, "rsi_reversal", tr.Reason)
	assert.Equal(t, 0, h.engine.resets)
	require.Len(t, h.journal.events, 2)
	assert.Equal(t, models.SignalBuyExit, h.journal.events[1].Kind)
}

func TestExitWhileFlatDiscarded(t *testing.T) {
	h := newHarness()
	h.engine.next = []models.Signal{{Kind: models.SignalSellExit, Price: 22000}}

	tr := h.m.Cycle(context.Background(), newBar(at(10, 0), 22000))

	assert.False(t, tr.Changed())
	assert.Empty(t, h.submit.subs)
	assert.Empty(t, h.journal.events)
}

func TestExitSubmissionFailureStillClears(t *testing.T) {
	h := newHarness()
	h.openLong(t)
	h.submit.ack, h.submit.err = false, errors.New("timeout")

	tr := h.m.Cycle(context.Background(), CycleInput{Now: at(10, 1), LastPrice: 22200})

	assert.Equal(t, "target", tr.Reason)
	assert.Equal(t, StateFlat, h.m.State())
	assert.Equal(t, models.Flat, h.m.Position().State)
}

type discardSink struct{}

func (discardSink) Send(context.Context, models.TickEvent) error { return nil }

func TestSharedDerivativeStreamSurvivesOtherUnderlyingExit(t *testing.T) {
	sup := tickstream.NewSupervisor(
		tickstream.PipelineConfig{Workers: 1, QueueSize: 4, SinkTimeout: time.Second},
		discardSink{},
		func(string) tickstream.Feed { return tickstream.NopFeed{} },
		nil, nil,
	)
	defer sup.StopAll()

	a := (&harness{}).build("26000", sup)
	b := (&harness{}).build("26009", sup)
	a.openLong(t)
	b.openLong(t)
	assert.Equal(t, []string{"45001"}, sup.Active())

	tr := a.m.Cycle(context.Background(), newBar(at(10, 5), 21990))
	require.Equal(t, StateFlat, tr.To)
	assert.Equal(t, StateOpen, b.m.State())
	assert.Equal(t, []string{"45001"}, sup.Active())

	tr = b.m.Cycle(context.Background(), newBar(at(10, 6), 21990))
	require.Equal(t, StateFlat, tr.To)
	assert.Empty(t, sup.Active())
}
