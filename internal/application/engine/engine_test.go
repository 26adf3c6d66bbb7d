package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/hoopsarb/internal/application/engine"
	"github.com/alejandrodnm/hoopsarb/internal/application/provider"
	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/alejandrodnm/hoopsarb/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// mockSource devuelve los snapshots en orden y repite el último.
type mockSource struct {
	snaps  []domain.ScoreSnapshot
	calls  int
	closed int

	name     string
	closeLog *[]string
}

func (m *mockSource) GetScore(_ context.Context) domain.ScoreSnapshot {
	i := m.calls
	if i >= len(m.snaps) {
		i = len(m.snaps) - 1
	}
	m.calls++
	return m.snaps[i]
}

func (m *mockSource) Close() error {
	m.closed++
	if m.closeLog != nil {
		*m.closeLog = append(*m.closeLog, m.name)
	}
	return nil
}

type mockExecutor struct {
	orders []domain.BetOrder
	result domain.BetResult
	err    error
}

func (m *mockExecutor) Execute(_ context.Context, o domain.BetOrder) (domain.BetResult, error) {
	m.orders = append(m.orders, o)
	return m.result, m.err
}

type mockPolicy struct {
	p       domain.PolicyConfig
	err     error
	reloads int
}

func (m *mockPolicy) Current() domain.PolicyConfig { return m.p }

func (m *mockPolicy) Reload() (domain.PolicyConfig, error) {
	m.reloads++
	if m.err != nil {
		return domain.PolicyConfig{}, m.err
	}
	return m.p, nil
}

type mockSink struct {
	events []domain.Event
}

func (m *mockSink) Publish(_ context.Context, ev domain.Event) {
	m.events = append(m.events, ev)
}

func (m *mockSink) count(name domain.EventName) int {
	n := 0
	for _, e := range m.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (m *mockSink) last(name domain.EventName) (domain.Event, bool) {
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Name == name {
			return m.events[i], true
		}
	}
	return domain.Event{}, false
}

type mockOutcomes struct {
	bets     []domain.BetRecord
	resolved map[string]float64
}

func (m *mockOutcomes) RecordBet(_ context.Context, rec domain.BetRecord) error {
	m.bets = append(m.bets, rec)
	return nil
}

func (m *mockOutcomes) MarkBetResolved(_ context.Context, id string, lag float64) error {
	if m.resolved == nil {
		m.resolved = map[string]float64{}
	}
	m.resolved[id] = lag
	return nil
}

type mockReporter struct {
	reports []domain.Session
}

func (m *mockReporter) Report(s domain.Session) {
	m.reports = append(m.reports, s)
}

type panicProvider struct{}

func (panicProvider) Name() string { return "panic" }

func (panicProvider) Suggest(context.Context, domain.ScoreSnapshot, domain.ScoreSnapshot, float64, ports.DecisionContext) domain.CandidateAction {
	panic("provider exploded")
}

type errProvider struct{}

func (errProvider) Name() string { return "err" }

func (errProvider) Suggest(context.Context, domain.ScoreSnapshot, domain.ScoreSnapshot, float64, ports.DecisionContext) domain.CandidateAction {
	return domain.ProviderFailure("upstream 500")
}

// slowProvider delega en otro provider y adelanta el reloj como si tardara.
type slowProvider struct {
	inner ports.DecisionProvider
	clock *fakeClock
	took  time.Duration
}

func (s slowProvider) Name() string { return "slow" }

func (s slowProvider) Suggest(ctx context.Context, trans, bet domain.ScoreSnapshot, stake float64, dc ports.DecisionContext) domain.CandidateAction {
	s.clock.t = s.clock.t.Add(s.took)
	return s.inner.Suggest(ctx, trans, bet, stake, dc)
}

// scriptedClock devuelve los instantes en orden y repite el último.
type scriptedClock struct {
	times []time.Time
	i     int
}

func (c *scriptedClock) Now() time.Time {
	i := c.i
	if i >= len(c.times) {
		i = len(c.times) - 1
	}
	c.i++
	return c.times[i]
}

// fakeClock avanza step en cada llamada.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// --- helpers ---

var t0 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func snap(a, b int, source string) domain.ScoreSnapshot {
	return domain.ScoreSnapshot{TeamA: a, TeamB: b, Source: source}
}

func repeat(s domain.ScoreSnapshot, n int) []domain.ScoreSnapshot {
	out := make([]domain.ScoreSnapshot, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func trans(a, b int) domain.ScoreSnapshot { return snap(a, b, domain.SourceTransmission) }
func bet(a, b int) domain.ScoreSnapshot   { return snap(a, b, domain.SourceBet) }

func makePolicy(iterations int) domain.PolicyConfig {
	p := domain.DefaultPolicy()
	p.SelectedGame = "LAL vs BOS"
	p.AutoExecuteEnabled = true
	p.LoopInterval = 0
	p.MaxIterations = iterations
	return p
}

type harness struct {
	trans    *mockSource
	bet      *mockSource
	exec     *mockExecutor
	policy   *mockPolicy
	sink     *mockSink
	outcomes *mockOutcomes
	reporter *mockReporter
	clock    *fakeClock
	now      func() time.Time
	provider ports.DecisionProvider
}

func makeHarness(p domain.PolicyConfig, transSnaps, betSnaps []domain.ScoreSnapshot) *harness {
	return &harness{
		trans:    &mockSource{snaps: transSnaps, name: domain.SourceTransmission},
		bet:      &mockSource{snaps: betSnaps, name: domain.SourceBet},
		exec:     &mockExecutor{result: domain.BetResult{Accepted: true, Reference: "ref-1"}},
		policy:   &mockPolicy{p: p},
		sink:     &mockSink{},
		outcomes: &mockOutcomes{},
		reporter: &mockReporter{},
		clock:    &fakeClock{t: t0, step: time.Second},
		provider: provider.NewLocal(),
	}
}

func (h *harness) engine() *engine.Engine {
	now := h.now
	if now == nil {
		now = h.clock.Now
	}
	return engine.New(engine.Deps{
		Transmission: h.trans,
		Bet:          h.bet,
		Provider:     h.provider,
		Executor:     h.exec,
		Policy:       h.policy,
		Sink:         h.sink,
		Outcomes:     h.outcomes,
		Reporter:     h.reporter,
		Now:          now,
	})
}

func (h *harness) run(t *testing.T) *engine.Engine {
	t.Helper()
	e := h.engine()
	require.NoError(t, e.Run(context.Background()))
	return e
}

func stopReason(t *testing.T, sink *mockSink) string {
	t.Helper()
	ev, ok := sink.last(domain.EventStop)
	require.True(t, ok, "STOP event missing")
	return ev.Message()
}

// --- tests ---

func TestRun_DetectsAndBets(t *testing.T) {
	h := makeHarness(makePolicy(1),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})

	e := h.run(t)

	require.Len(t, h.exec.orders, 1)
	order := h.exec.orders[0]
	assert.Equal(t, domain.TeamA, order.Team)
	assert.Equal(t, 2, order.PointGap)
	// 0.06 - 5×0.01 = 0.01 → justo en el umbral, factor 1
	assert.InDelta(t, 10.0, order.Stake, 1e-9)

	assert.Equal(t, 1, h.sink.count(domain.EventDetected))
	assert.Equal(t, 1, h.sink.count(domain.EventBetPlaced))
	assert.Equal(t, 1, h.sink.count(domain.EventCompare))
	assert.Equal(t, 1, h.sink.count(domain.EventDesync))
	assert.Equal(t, 0, h.sink.count(domain.EventBlocked))

	placed, _ := h.sink.last(domain.EventBetPlaced)
	assert.Equal(t, order.SignalID, placed.Fields["signal_id"])
	assert.Equal(t, string(domain.RiskApprovedScaled), placed.Fields["risk_reason"])

	require.Len(t, h.outcomes.bets, 1)
	assert.Equal(t, "PENDING", h.outcomes.bets[0].Status)
	assert.Equal(t, order.SignalID, h.outcomes.bets[0].SignalID)

	s := e.Session()
	assert.Equal(t, 1, s.Iterations)
	assert.Equal(t, 1, s.BetsInSession)
	assert.Equal(t, 1, s.Detected)
	assert.Equal(t, 0, s.BlockedStreak)

	assert.Equal(t, engine.StopMaxIterations, stopReason(t, h.sink))
	assert.Equal(t, 1, h.trans.closed)
	assert.Equal(t, 1, h.bet.closed)
	require.Len(t, h.reporter.reports, 1)
	assert.Equal(t, 1, h.reporter.reports[0].BetsInSession)
}

func TestRun_UnchangedSignatureSkipsDecision(t *testing.T) {
	h := makeHarness(makePolicy(3),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})

	h.run(t)

	assert.Len(t, h.exec.orders, 1)
	assert.Equal(t, 1, h.sink.count(domain.EventCompare))
	assert.Equal(t, 1, h.sink.count(domain.EventDetected))
	assert.Equal(t, 3, h.sink.count(domain.EventTick))
}

func TestRun_DuplicateSignalNotRedispatched(t *testing.T) {
	// A → B → A: la señal de A sigue sin resolver, no se vuelve a despachar
	h := makeHarness(makePolicy(3),
		[]domain.ScoreSnapshot{trans(100, 98), trans(100, 99), trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})

	h.run(t)

	assert.Len(t, h.exec.orders, 1)
	assert.Equal(t, 1, h.sink.count(domain.EventDetected))
	assert.Equal(t, 3, h.sink.count(domain.EventCompare))

	desync, ok := h.sink.last(domain.EventDesync)
	require.True(t, ok)
	assert.Equal(t, "100-98", desync.Fields["transmission"])
}

func TestRun_RegisterDiscrepancyLoggedAsDesync(t *testing.T) {
	h := makeHarness(makePolicy(1),
		[]domain.ScoreSnapshot{trans(100, 99)},
		[]domain.ScoreSnapshot{bet(98, 98)})

	h.run(t)

	desync, ok := h.sink.last(domain.EventDesync)
	require.True(t, ok)
	assert.Equal(t, string(domain.TeamA), desync.Fields["team"])
	assert.Equal(t, 2, desync.Fields["point_gap"])
	assert.Empty(t, h.exec.orders)
	assert.Equal(t, 0, h.sink.count(domain.EventDetected))
}

func TestRun_CooldownBlocksSameTeamAndGap(t *testing.T) {
	h := makeHarness(makePolicy(2),
		[]domain.ScoreSnapshot{trans(100, 98), trans(102, 100)},
		[]domain.ScoreSnapshot{bet(98, 98), bet(100, 100)})

	e := h.run(t)

	assert.Len(t, h.exec.orders, 1)
	assert.Equal(t, 2, h.sink.count(domain.EventDetected))
	blocked, ok := h.sink.last(domain.EventBlocked)
	require.True(t, ok)
	assert.Equal(t, "cooldown_active", blocked.Message())
	assert.Equal(t, 1, e.Session().BlockedStreak)
	assert.Equal(t, 1, e.Session().Blocked)
}

func TestRun_RiskRejection(t *testing.T) {
	p := makePolicy(1)
	p.RiskFilters.BetDelaySeconds = 6 // 0.06 - 0.06 < 0.01
	h := makeHarness(p,
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})

	h.run(t)

	assert.Empty(t, h.exec.orders)
	blocked, ok := h.sink.last(domain.EventBlocked)
	require.True(t, ok)
	assert.Equal(t, string(domain.RiskEVBelow), blocked.Message())
}

func TestRun_AutoExecuteDisabled(t *testing.T) {
	p := makePolicy(1)
	p.AutoExecuteEnabled = false
	h := makeHarness(p,
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})

	h.run(t)

	assert.Empty(t, h.exec.orders)
	blocked, _ := h.sink.last(domain.EventBlocked)
	assert.Equal(t, domain.BlockAutoExecuteDisabled, blocked.Message())
}

func TestRun_ExpiresWhenDelayExceedsTTL(t *testing.T) {
	p := makePolicy(1)
	p.SignalTTL = 4 * time.Second
	p.RiskFilters.Enabled = false // el riesgo aprobaría igualmente; aislamos el TTL
	h := makeHarness(p,
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})

	e := h.run(t)

	assert.Empty(t, h.exec.orders)
	expired, ok := h.sink.last(domain.EventExpired)
	require.True(t, ok)
	assert.Equal(t, "ttl_before_acceptance", expired.Message())
	assert.Equal(t, 1, e.Session().Expired)
}

func TestRun_ExecutorErrorBlocks(t *testing.T) {
	h := makeHarness(makePolicy(1),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	h.exec.err = errors.New("connection refused")

	e := h.run(t)

	blocked, _ := h.sink.last(domain.EventBlocked)
	assert.Equal(t, domain.BlockExecutorError, blocked.Message())
	assert.Equal(t, 0, e.Session().BetsInSession)
	assert.Empty(t, h.outcomes.bets)
}

func TestRun_ManualExecutorCountsAsBlocked(t *testing.T) {
	h := makeHarness(makePolicy(1),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	h.exec.result = domain.BetResult{Accepted: false}

	h.run(t)

	blocked, _ := h.sink.last(domain.EventBlocked)
	assert.Equal(t, domain.BlockManualMode, blocked.Message())
}

func TestRun_ResolutionMarksOutcome(t *testing.T) {
	h := makeHarness(makePolicy(2),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98), bet(100, 98)})

	h.run(t)

	require.Len(t, h.exec.orders, 1)
	id := h.exec.orders[0].SignalID
	require.Contains(t, h.outcomes.resolved, id)
	// detectada en t0+1 (lectura del tick), resuelta en t0+3: t0+2 fue la lectura previa a ejecutar
	assert.InDelta(t, 2.0, h.outcomes.resolved[id], 1e-9)
	assert.Equal(t, 1, h.sink.count(domain.EventDelayResolved))
}

func TestRun_SafeModeEngagesOnFifthHighDelayTick(t *testing.T) {
	p := makePolicy(6)
	p.AutoExecuteEnabled = false
	h := makeHarness(p,
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	h.clock.step = 10 * time.Second

	e := h.engine()
	require.NoError(t, e.Run(context.Background()))

	// tick 1 detecta; ticks 2..6 observan delay > 6s + 3s
	assert.Equal(t, 1, h.sink.count(domain.EventSafeModeEnabled))
	sm := e.SafeMode()
	assert.True(t, sm.Enabled)
	assert.Equal(t, domain.SafeModeThreshold, sm.ConsecutiveHighDelay)
}

func TestRun_SafeModeNotEngagedBeforeFifthTick(t *testing.T) {
	p := makePolicy(5)
	p.AutoExecuteEnabled = false
	h := makeHarness(p,
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	h.clock.step = 10 * time.Second

	e := h.engine()
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 0, h.sink.count(domain.EventSafeModeEnabled))
	assert.False(t, e.SafeMode().Enabled)
}

func TestRun_SlowProviderEatsIntoTTL(t *testing.T) {
	cases := []struct {
		name   string
		took   time.Duration
		orders int
	}{
		// TTL 8s, delay 5s: la señal cuenta desde la lectura de los marcadores
		{"fast provider", 2 * time.Second, 1},
		{"slow provider", 4 * time.Second, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := makeHarness(makePolicy(1),
				[]domain.ScoreSnapshot{trans(100, 98)},
				[]domain.ScoreSnapshot{bet(98, 98)})
			h.clock.step = 0
			h.provider = slowProvider{inner: provider.NewLocal(), clock: h.clock, took: tc.took}

			h.run(t)

			assert.Len(t, h.exec.orders, tc.orders)
			detected, ok := h.sink.last(domain.EventDetected)
			require.True(t, ok)
			assert.True(t, detected.At.Equal(t0), "detected_at es la lectura del tick")
			if tc.orders == 0 {
				expired, ok := h.sink.last(domain.EventExpired)
				require.True(t, ok)
				assert.Equal(t, "ttl_before_acceptance", expired.Message())
				assert.True(t, expired.At.Equal(t0.Add(tc.took)))
			}
		})
	}
}

func TestRun_TTLCheckedWithClockBeforeExecute(t *testing.T) {
	cases := []struct {
		name   string
		step   time.Duration
		orders int
	}{
		// step 3s: detectada t0+3, expira t0+11, comprobación t0+6 → 6+5 = 11, justo en el límite
		{"at the limit", 3 * time.Second, 1},
		// step 4s: detectada t0+4, expira t0+12, comprobación t0+8 → 13 > 12
		{"past the limit", 4 * time.Second, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := makeHarness(makePolicy(1),
				[]domain.ScoreSnapshot{trans(100, 98)},
				[]domain.ScoreSnapshot{bet(98, 98)})
			h.clock.step = tc.step

			h.run(t)

			assert.Len(t, h.exec.orders, tc.orders)
			assert.Equal(t, 1-tc.orders, h.sink.count(domain.EventExpired))
		})
	}
}

func TestRun_SafeModeBlocksAutoExecution(t *testing.T) {
	p := makePolicy(7)
	p.SignalTTL = time.Minute
	transSnaps := repeat(trans(100, 98), 6)
	betSnaps := repeat(bet(98, 98), 6)
	h := makeHarness(p,
		append(transSnaps, trans(102, 101)),
		append(betSnaps, bet(100, 101)))
	h.clock.step = 10 * time.Second

	e := h.run(t)

	// tick 1 apuesta; ticks 2..6 activan safe mode; tick 7 detecta otra señal
	require.Len(t, h.exec.orders, 1)
	assert.Equal(t, 1, h.sink.count(domain.EventSafeModeEnabled))
	assert.Equal(t, 2, h.sink.count(domain.EventDetected))

	blocked, ok := h.sink.last(domain.EventBlocked)
	require.True(t, ok)
	assert.Equal(t, domain.BlockSafeModeActive, blocked.Message())
	assert.True(t, e.SafeMode().Enabled)
	assert.Equal(t, 1, e.Session().BetsInSession)
}

func TestRun_SafeModeRecoversWithoutReenablingAutoExecute(t *testing.T) {
	p := makePolicy(10)
	p.AutoExecuteEnabled = false
	p.SafeModeRecovery = time.Minute

	transSnaps := append(repeat(trans(100, 98), 6),
		trans(102, 100), trans(102, 100), trans(102, 100), trans(105, 102))
	betSnaps := append(repeat(bet(98, 98), 6),
		bet(100, 100), bet(102, 100), bet(102, 100), bet(102, 102))
	h := makeHarness(p, transSnaps, betSnaps)

	// una lectura por tick: auto-execute está apagado y nunca se llega al TTL
	clock := &scriptedClock{}
	for _, sec := range []int{0, 10, 20, 30, 40, 50, 60, 70, 72, 140, 150} {
		clock.times = append(clock.times, t0.Add(time.Duration(sec)*time.Second))
	}
	h.now = clock.Now

	e := h.run(t)

	// ticks 2..6 activan; tick 8 resuelve una señal en 2s; tick 9 lleva 68s de calma
	assert.Equal(t, 1, h.sink.count(domain.EventSafeModeEnabled))
	recovered, ok := h.sink.last(domain.EventSafeModeRecovered)
	require.True(t, ok)
	assert.True(t, recovered.At.Equal(t0.Add(140*time.Second)))

	sm := e.SafeMode()
	assert.False(t, sm.Enabled)
	assert.Zero(t, sm.ConsecutiveHighDelay)

	// la señal posterior sigue bloqueada por la configuración, no por safe mode
	assert.Empty(t, h.exec.orders)
	blocked, ok := h.sink.last(domain.EventBlocked)
	require.True(t, ok)
	assert.Equal(t, domain.BlockAutoExecuteDisabled, blocked.Message())
	assert.Equal(t, 3, blocked.Fields["point_gap"])
	assert.False(t, h.policy.Current().AutoExecuteEnabled)
}

func TestRun_TeardownClosesTransmissionThenBet(t *testing.T) {
	h := makeHarness(makePolicy(1),
		[]domain.ScoreSnapshot{trans(98, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	var closed []string
	h.trans.closeLog = &closed
	h.bet.closeLog = &closed

	h.run(t)

	assert.Equal(t, []string{domain.SourceTransmission, domain.SourceBet}, closed)
}

func TestRun_FeedWarningsAutoStop(t *testing.T) {
	p := makePolicy(10)
	p.Automation.MaxFeedWarnings = 2
	h := makeHarness(p,
		[]domain.ScoreSnapshot{domain.DegradedSnapshot(domain.SourceTransmission, errors.New("timeout"))},
		[]domain.ScoreSnapshot{bet(98, 98)})

	e := h.run(t)

	assert.Equal(t, 2, h.sink.count(domain.EventFeedWarning))
	autoStop, ok := h.sink.last(domain.EventAutoStop)
	require.True(t, ok)
	assert.Equal(t, engine.StopFeedWarnings, autoStop.Message())
	assert.Equal(t, engine.StopFeedWarnings, stopReason(t, h.sink))
	assert.Equal(t, 0, h.sink.count(domain.EventCompare), "degraded snapshots skip decisioning")
	assert.Equal(t, 2, e.Session().Iterations)
}

func TestRun_BlockedStreakAutoStop(t *testing.T) {
	p := makePolicy(10)
	p.AutoExecuteEnabled = false
	p.Cooldown = 0
	p.Automation.MaxBlockedStreak = 2
	h := makeHarness(p,
		[]domain.ScoreSnapshot{trans(100, 98), trans(101, 98), trans(102, 98)},
		[]domain.ScoreSnapshot{bet(98, 98), bet(99, 98), bet(100, 98)})

	h.run(t)

	assert.Equal(t, 2, h.sink.count(domain.EventBlocked))
	assert.Equal(t, engine.StopBlockedStreak, stopReason(t, h.sink))
}

func TestRun_AuthRequiredStops(t *testing.T) {
	p := makePolicy(10)
	p.Automation.StopOnAuthRequired = true
	betSnap := bet(98, 98)
	betSnap.AuthRequired = true
	h := makeHarness(p,
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{betSnap})

	h.run(t)

	assert.Equal(t, 1, h.sink.count(domain.EventAuthRequired))
	assert.Equal(t, engine.StopAuthRequired, stopReason(t, h.sink))
	assert.Empty(t, h.exec.orders)
}

func TestRun_ProviderErrorIsNoOpTick(t *testing.T) {
	h := makeHarness(makePolicy(1),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	h.provider = errProvider{}

	e := h.run(t)

	assert.Equal(t, 1, h.sink.count(domain.EventProviderError))
	assert.Equal(t, 1, e.Session().Errors)
	assert.Empty(t, h.exec.orders)
	assert.Equal(t, 1, h.sink.count(domain.EventTick))
}

func TestRun_ReloadErrorKeepsPreviousPolicy(t *testing.T) {
	h := makeHarness(makePolicy(2),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	h.policy.err = errors.New("yaml: line 3: bad indentation")

	h.run(t)

	assert.Equal(t, 2, h.policy.reloads)
	assert.Len(t, h.exec.orders, 1)
}

func TestRun_StopBeforeFirstTick(t *testing.T) {
	h := makeHarness(makePolicy(0),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	e := h.engine()
	e.Stop()

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, engine.StopRequested, stopReason(t, h.sink))
	assert.Equal(t, 0, h.trans.calls)
	assert.Equal(t, 1, h.trans.closed)
}

func TestRun_ContextCancelled(t *testing.T) {
	h := makeHarness(makePolicy(0),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.engine().Run(ctx))

	assert.Equal(t, engine.StopContext, stopReason(t, h.sink))
	assert.Equal(t, 1, h.bet.closed)
}

func TestRun_PanicStillClosesSources(t *testing.T) {
	h := makeHarness(makePolicy(1),
		[]domain.ScoreSnapshot{trans(100, 98)},
		[]domain.ScoreSnapshot{bet(98, 98)})
	h.provider = panicProvider{}

	err := h.engine().Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider exploded")
	assert.Equal(t, 1, h.trans.closed)
	assert.Equal(t, 1, h.bet.closed)
	assert.Equal(t, engine.StopPanic, stopReason(t, h.sink))
}
