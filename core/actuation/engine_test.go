package actuation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/mixbot/core/events"
	"github.com/kilianp07/mixbot/infra/logger"
	"github.com/kilianp07/mixbot/internal/eventbus"
)

type transition struct {
	channel int
	active  bool
}

type fakeDriver struct {
	mu       sync.Mutex
	channels int
	log      []transition
	failOn   map[int]bool
	failOff  map[int]bool
}

func newFakeDriver(n int) *fakeDriver {
	return &fakeDriver{channels: n, failOn: map[int]bool{}, failOff: map[int]bool{}}
}

func (f *fakeDriver) SetChannelActive(ch int, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, transition{ch, active})
	if active && f.failOn[ch] {
		return fmt.Errorf("relay %d stuck", ch)
	}
	if !active && f.failOff[ch] {
		return fmt.Errorf("relay %d stuck", ch)
	}
	return nil
}

func (f *fakeDriver) Channels() int { return f.channels }
func (f *fakeDriver) Close() error  { return nil }

func (f *fakeDriver) transitions(ch int) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bool
	for _, tr := range f.log {
		if tr.channel == ch {
			out = append(out, tr.active)
		}
	}
	return out
}

// gate blocks each waiting channel until released by the test.
type gate struct {
	mu      sync.Mutex
	waiting map[time.Duration]chan struct{}
	entered chan time.Duration
}

func newGate() *gate {
	return &gate{waiting: map[time.Duration]chan struct{}{}, entered: make(chan time.Duration, 16)}
}

func (g *gate) ch(d time.Duration) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.waiting[d]
	if !ok {
		c = make(chan struct{})
		g.waiting[d] = c
	}
	return c
}

func (g *gate) wait(d time.Duration) {
	c := g.ch(d)
	g.entered <- d
	<-c
}

func (g *gate) release(d time.Duration) { close(g.ch(d)) }

func newTestEngine(t *testing.T, d Driver, bus eventbus.EventBus) *Engine {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	e, err := NewEngine(d, Calibration{SecondsPerML: 0.5}, logger.NopLogger{}, bus)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	e.SetWaiter(func(time.Duration) {})
	return e
}

func TestCalibrationDuration(t *testing.T) {
	c := Calibration{SecondsPerML: 0.5}
	if d := c.Duration(50); d != 25*time.Second {
		t.Fatalf("expected 25s got %s", d)
	}
	if d := c.Duration(0); d != 0 {
		t.Fatalf("expected 0 got %s", d)
	}
	if err := (Calibration{}).Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestActuateInvalidChannel(t *testing.T) {
	drv := newFakeDriver(4)
	e := newTestEngine(t, drv, nil)
	for _, ch := range []int{-1, 4, 19} {
		if err := e.Actuate(context.Background(), ch, time.Second); !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("channel %d: expected invalid channel got %v", ch, err)
		}
	}
	if len(drv.log) != 0 {
		t.Fatalf("driver touched for invalid channel")
	}
}

func TestActuateTogglesChannel(t *testing.T) {
	drv := newFakeDriver(4)
	bus := eventbus.New()
	sub := bus.Subscribe()
	e := newTestEngine(t, drv, bus)
	var waited time.Duration
	e.SetWaiter(func(d time.Duration) { waited = d })

	if err := e.Actuate(context.Background(), 2, 3*time.Second); err != nil {
		t.Fatalf("actuate: %v", err)
	}
	if waited != 3*time.Second {
		t.Fatalf("expected wait 3s got %s", waited)
	}
	tr := drv.transitions(2)
	if len(tr) != 2 || !tr[0] || tr[1] {
		t.Fatalf("unexpected transitions %v", tr)
	}
	ev := (<-sub).(events.ChannelEvent)
	if ev.Action != events.ChannelActivated || ev.Channel != 2 {
		t.Fatalf("unexpected first event %+v", ev)
	}
	ev = (<-sub).(events.ChannelEvent)
	if ev.Action != events.ChannelDeactivated {
		t.Fatalf("unexpected second event %+v", ev)
	}
	if e.Active(2) {
		t.Fatalf("channel still active")
	}
	if got := testutil.ToFloat64(actuations.WithLabelValues("2", "ok")); got != 1 {
		t.Fatalf("expected 1 ok actuation got %v", got)
	}
}

func TestActuateBusyChannel(t *testing.T) {
	drv := newFakeDriver(4)
	e := newTestEngine(t, drv, nil)
	g := newGate()
	e.SetWaiter(g.wait)

	done := make(chan error, 1)
	go func() { done <- e.Actuate(context.Background(), 1, time.Second) }()
	<-g.entered

	if err := e.TestChannel(context.Background(), 1, time.Second); !errors.Is(err, ErrChannelBusy) {
		t.Fatalf("expected busy got %v", err)
	}
	if !e.Busy() {
		t.Fatalf("engine should report busy")
	}
	g.release(time.Second)
	if err := <-done; err != nil {
		t.Fatalf("actuate: %v", err)
	}
	if e.Busy() {
		t.Fatalf("engine should be idle")
	}
}

func TestActuateActivationFailureForcesOff(t *testing.T) {
	drv := newFakeDriver(4)
	drv.failOn[0] = true
	e := newTestEngine(t, drv, nil)
	if err := e.Actuate(context.Background(), 0, time.Second); err == nil {
		t.Fatalf("expected error")
	}
	tr := drv.transitions(0)
	if len(tr) != 2 || tr[1] {
		t.Fatalf("expected forced off, got %v", tr)
	}
	if e.Active(0) {
		t.Fatalf("channel left claimed")
	}
}

func TestActuateDeactivationFailure(t *testing.T) {
	drv := newFakeDriver(4)
	drv.failOff[3] = true
	e := newTestEngine(t, drv, nil)
	err := e.Actuate(context.Background(), 3, time.Second)
	if !errors.Is(err, ErrDeactivate) {
		t.Fatalf("expected deactivate error got %v", err)
	}
	if e.Active(3) {
		t.Fatalf("channel left claimed")
	}
	if got := testutil.ToFloat64(actuations.WithLabelValues("3", "error")); got != 1 {
		t.Fatalf("expected 1 failed actuation got %v", got)
	}

	res := e.ActuateMany(context.Background(), []Request{{Channel: 3, AmountML: 30}, {Channel: 0, AmountML: 10}})
	if res[0].OK() || !res[0].Poured() {
		t.Fatalf("stuck channel should report poured but not ok: %v", res[0].Err)
	}
	if got := testutil.ToFloat64(dispensedVolume.WithLabelValues("3")); got != 30 {
		t.Fatalf("expected 30ml dispensed on channel 3 got %v", got)
	}
	drv.failOn[0] = true
	res = e.ActuateMany(context.Background(), []Request{{Channel: 0, AmountML: 10}})
	if res[0].Poured() {
		t.Fatalf("activation failure must not count as poured")
	}
}

func TestActuateCanceledBeforeStart(t *testing.T) {
	drv := newFakeDriver(2)
	e := newTestEngine(t, drv, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Actuate(ctx, 0, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled got %v", err)
	}
	if len(drv.log) != 0 {
		t.Fatalf("driver touched after cancel")
	}
}

func TestActuateManyWaitsForAll(t *testing.T) {
	drv := newFakeDriver(4)
	e := newTestEngine(t, drv, nil)
	g := newGate()
	e.SetWaiter(g.wait)

	reqs := []Request{
		{Channel: 0, IngredientID: 1, AmountML: 10},
		{Channel: 1, IngredientID: 2, AmountML: 20},
		{Channel: 2, IngredientID: 3, AmountML: 40},
	}
	done := make(chan []Result, 1)
	go func() { done <- e.ActuateMany(context.Background(), reqs) }()
	for range reqs {
		<-g.entered
	}

	g.release(5 * time.Second)
	g.release(10 * time.Second)
	select {
	case <-done:
		t.Fatalf("returned before every channel finished")
	case <-time.After(20 * time.Millisecond):
	}
	g.release(20 * time.Second)

	res := <-done
	if len(res) != 3 {
		t.Fatalf("expected 3 results got %d", len(res))
	}
	for i, r := range res {
		if !r.OK() {
			t.Fatalf("result %d failed: %v", i, r.Err)
		}
		if r.Request != reqs[i] {
			t.Fatalf("result order mismatch at %d", i)
		}
	}
	if res[2].Duration != 20*time.Second {
		t.Fatalf("expected 20s got %s", res[2].Duration)
	}
}

func TestActuateManyIndependentFailures(t *testing.T) {
	drv := newFakeDriver(4)
	drv.failOff[1] = true
	e := newTestEngine(t, drv, nil)

	res := e.ActuateMany(context.Background(), []Request{
		{Channel: 0, AmountML: 10},
		{Channel: 1, AmountML: 10},
		{Channel: 9, AmountML: 10},
	})
	if !res[0].OK() {
		t.Fatalf("channel 0 should succeed: %v", res[0].Err)
	}
	if res[1].OK() {
		t.Fatalf("channel 1 should fail")
	}
	if !errors.Is(res[2].Err, ErrInvalidChannel) {
		t.Fatalf("channel 9 should be invalid, got %v", res[2].Err)
	}
}

func TestActuateManyRealTime(t *testing.T) {
	drv := newFakeDriver(3)
	ResetMetrics(prometheus.NewRegistry())
	e, err := NewEngine(drv, Calibration{SecondsPerML: 0.001}, logger.NopLogger{}, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	start := time.Now()
	e.ActuateMany(context.Background(), []Request{{Channel: 0, AmountML: 5}, {Channel: 1, AmountML: 40}})
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("returned after %s, before the longest channel", elapsed)
	}
}

func TestReset(t *testing.T) {
	drv := newFakeDriver(3)
	drv.failOff[2] = true
	e := newTestEngine(t, drv, nil)
	if err := e.Reset(); err == nil {
		t.Fatalf("expected joined error for channel 2")
	}
	for ch := 0; ch < 3; ch++ {
		if tr := drv.transitions(ch); len(tr) != 1 || tr[0] {
			t.Fatalf("channel %d not switched off: %v", ch, tr)
		}
	}
}

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	actuations.WithLabelValues("0", "ok").Inc()
	actuationTime.WithLabelValues("0").Observe(1)
	dispensedVolume.WithLabelValues("0").Add(20)
	activeChannels.Set(0)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[*mf.Name] = true
	}
	for _, n := range []string{"channel_actuations_total", "channel_actuation_seconds", "channel_dispensed_ml_total", "channels_active"} {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}
