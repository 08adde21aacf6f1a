package actuation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kilianp07/mixbot/core/events"
	"github.com/kilianp07/mixbot/core/logger"
	"github.com/kilianp07/mixbot/internal/eventbus"
)

// Waiter blocks for d. Tests replace it to release channels on demand.
type Waiter func(d time.Duration)

// Request asks for one channel to deliver a volume.
type Request struct {
	Channel      int
	IngredientID int
	AmountML     float64
}

// Result reports how a single request ended.
type Result struct {
	Request  Request
	Duration time.Duration
	Started  time.Time
	Finished time.Time
	Err      error
}

// OK reports whether the channel delivered its full duration and was
// switched off.
func (r Result) OK() bool { return r.Err == nil }

// Poured reports whether the channel stayed active for its full duration,
// even if switching it off failed afterwards.
func (r Result) Poured() bool { return r.Err == nil || errors.Is(r.Err, ErrDeactivate) }

// Engine runs channel actuations on top of a Driver.
type Engine struct {
	driver Driver
	cal    Calibration
	log    logger.Logger
	bus    eventbus.EventBus
	wait   Waiter

	mu     sync.Mutex
	active map[int]bool
}

// NewEngine creates an engine. A nil bus disables event publication.
func NewEngine(driver Driver, cal Calibration, log logger.Logger, bus eventbus.EventBus) (*Engine, error) {
	if driver == nil {
		return nil, fmt.Errorf("actuation: nil driver")
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if bus == nil {
		bus = eventbus.NopBus{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Engine{
		driver: driver,
		cal:    cal,
		log:    log,
		bus:    bus,
		wait:   time.Sleep,
		active: make(map[int]bool),
	}, nil
}

// SetWaiter replaces the blocking wait used while a channel is active.
func (e *Engine) SetWaiter(w Waiter) {
	if w == nil {
		w = time.Sleep
	}
	e.mu.Lock()
	e.wait = w
	e.mu.Unlock()
}

// Calibration returns the volume to duration conversion in use.
func (e *Engine) Calibration() Calibration { return e.cal }

// Channels returns the number of channels driven by the engine.
func (e *Engine) Channels() int { return e.driver.Channels() }

// Active returns whether channel is currently active.
func (e *Engine) Active(channel int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active[channel]
}

// Busy reports whether any channel is active.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active) > 0
}

func (e *Engine) claim(channel int) (Waiter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[channel] {
		return nil, fmt.Errorf("channel %d: %w", channel, ErrChannelBusy)
	}
	e.active[channel] = true
	activeChannels.Inc()
	return e.wait, nil
}

func (e *Engine) release(channel int) {
	e.mu.Lock()
	delete(e.active, channel)
	e.mu.Unlock()
	activeChannels.Dec()
}

// Actuate keeps channel active for d and then switches it off. The wait is
// not interrupted by ctx: once a channel has been switched on it always runs
// for its full duration. ctx is only checked before starting.
func (e *Engine) Actuate(ctx context.Context, channel int, d time.Duration) error {
	if err := checkChannel(e.driver, channel); err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("channel %d: negative duration %s", channel, d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	wait, err := e.claim(channel)
	if err != nil {
		return err
	}
	defer e.release(channel)

	label := strconv.Itoa(channel)
	if err := e.driver.SetChannelActive(channel, true); err != nil {
		// the output state is unknown, force it off
		offErr := e.driver.SetChannelActive(channel, false)
		err = errors.Join(fmt.Errorf("activate channel %d: %w", channel, err), offErr)
		e.fail(channel, label, err)
		return err
	}
	start := time.Now()
	e.bus.Publish(events.ChannelEvent{Channel: channel, Action: events.ChannelActivated, Duration: d, Time: start})
	e.log.Debugw("channel activated", map[string]any{"channel": channel, "duration": d.String()})

	wait(d)

	if err := e.driver.SetChannelActive(channel, false); err != nil {
		err = fmt.Errorf("channel %d after %s: %w: %w", channel, time.Since(start).Round(time.Millisecond), ErrDeactivate, err)
		e.fail(channel, label, err)
		return err
	}
	elapsed := time.Since(start)
	actuations.WithLabelValues(label, "ok").Inc()
	actuationTime.WithLabelValues(label).Observe(elapsed.Seconds())
	e.bus.Publish(events.ChannelEvent{Channel: channel, Action: events.ChannelDeactivated, Duration: elapsed, Time: time.Now()})
	e.log.Debugw("channel deactivated", map[string]any{"channel": channel, "elapsed": elapsed.String()})
	return nil
}

func (e *Engine) fail(channel int, label string, err error) {
	actuations.WithLabelValues(label, "error").Inc()
	e.bus.Publish(events.ChannelEvent{Channel: channel, Action: events.ChannelFailed, Err: err, Time: time.Now()})
	e.log.Errorf("channel %d failed: %v", channel, err)
}

// TestChannel runs a single diagnostic actuation.
func (e *Engine) TestChannel(ctx context.Context, channel int, d time.Duration) error {
	e.log.Infof("testing channel %d for %s", channel, d)
	return e.Actuate(ctx, channel, d)
}

// ActuateMany starts one actuation per request and returns once all of them
// have finished. A failing channel never stops or hides the others; results
// are returned in request order.
func (e *Engine) ActuateMany(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			d := e.cal.Duration(req.AmountML)
			res := Result{Request: req, Duration: d, Started: time.Now()}
			defer func() {
				if r := recover(); r != nil {
					res.Err = fmt.Errorf("channel %d panicked: %v", req.Channel, r)
					_ = e.driver.SetChannelActive(req.Channel, false)
				}
				res.Finished = time.Now()
				results[i] = res
			}()
			res.Err = e.Actuate(ctx, req.Channel, d)
			if res.Poured() {
				dispensedVolume.WithLabelValues(strconv.Itoa(req.Channel)).Add(req.AmountML)
			}
		}(i, req)
	}
	wg.Wait()
	return results
}

// Reset switches every channel off. It is used at startup to put the relay
// board into a known state.
func (e *Engine) Reset() error {
	var errs []error
	for ch := 0; ch < e.driver.Channels(); ch++ {
		if err := e.driver.SetChannelActive(ch, false); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}
