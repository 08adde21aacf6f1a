// Package mixing turns cocktail orders into mix jobs: it resolves and checks
// a plan synchronously, queues the job and lets a worker pour the liquids,
// then commits the inventory for the channels that actually delivered.
package mixing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/mixbot/core/actuation"
	"github.com/kilianp07/mixbot/core/availability"
	"github.com/kilianp07/mixbot/core/events"
	"github.com/kilianp07/mixbot/core/logger"
	"github.com/kilianp07/mixbot/core/metrics"
	"github.com/kilianp07/mixbot/core/mixing/journal"
	"github.com/kilianp07/mixbot/core/model"
	"github.com/kilianp07/mixbot/core/monitoring"
	"github.com/kilianp07/mixbot/internal/eventbus"
)

// Planner resolves a cocktail into a dispensing plan.
type Planner interface {
	Resolve(ctx context.Context, cocktailID int) (model.DispensingPlan, error)
}

// Checker reports the liquids a plan is short of.
type Checker interface {
	Shortages(ctx context.Context, plan model.DispensingPlan) ([]availability.Shortage, error)
}

// Actuator pours several channels concurrently.
type Actuator interface {
	ActuateMany(ctx context.Context, reqs []actuation.Request) []actuation.Result
}

// Consumer removes dispensed volume from the inventory.
type Consumer interface {
	DecrementAfterUse(ctx context.Context, id int, ml float64) (model.Ingredient, error)
}

// Config controls the job queue.
type Config struct {
	// MaxConcurrentJobs is the number of jobs poured at the same time. One
	// serializes mixing, which keeps two jobs from claiming the same channel.
	MaxConcurrentJobs int `json:"max_concurrent_jobs"`
	// QueueSize bounds the accepted but not yet started jobs.
	QueueSize int `json:"queue_size"`
	// HistorySize is the number of finished jobs kept for inspection.
	HistorySize int `json:"history_size"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 4
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 50
	}
}

// Deps groups the collaborators of a Coordinator. Planner, Checker, Actuator
// and Inventory are required.
type Deps struct {
	Planner   Planner
	Checker   Checker
	Actuator  Actuator
	Inventory Consumer
	Logger    logger.Logger
	Bus       eventbus.EventBus
	Metrics   metrics.MetricsSink
	Journal   journal.Store
	Monitor   monitoring.Monitor
}

type entry struct {
	job      Job
	done     chan struct{}
	finished sync.Once
}

// Coordinator owns the job queue and the workers that drain it.
type Coordinator struct {
	cfg       Config
	planner   Planner
	checker   Checker
	actuator  Actuator
	inventory Consumer
	log       logger.Logger
	bus       eventbus.EventBus
	sink      metrics.MetricsSink
	journal   journal.Store
	monitor   monitoring.Monitor

	queue   chan *entry
	pending atomic.Int64
	wg      sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*entry
	order   []string
	started bool
	closed  bool
	cancel  context.CancelFunc
}

// NewCoordinator validates deps and returns a stopped coordinator. Call Start
// to launch the workers.
func NewCoordinator(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Planner == nil || deps.Checker == nil || deps.Actuator == nil || deps.Inventory == nil {
		return nil, fmt.Errorf("mixing: nil dependency provided to NewCoordinator")
	}
	cfg.SetDefaults()
	c := &Coordinator{
		cfg:       cfg,
		planner:   deps.Planner,
		checker:   deps.Checker,
		actuator:  deps.Actuator,
		inventory: deps.Inventory,
		log:       deps.Logger,
		bus:       deps.Bus,
		sink:      deps.Metrics,
		journal:   deps.Journal,
		monitor:   deps.Monitor,
		queue:     make(chan *entry, cfg.QueueSize),
		jobs:      make(map[string]*entry),
	}
	if c.log == nil {
		c.log = logger.Nop{}
	}
	if c.bus == nil {
		c.bus = eventbus.NopBus{}
	}
	if c.sink == nil {
		c.sink = metrics.NopSink{}
	}
	if c.journal == nil {
		c.journal = journal.NopStore{}
	}
	if c.monitor == nil {
		c.monitor = monitoring.NopMonitor{}
	}
	return c, nil
}

// Start launches the workers. They stop when ctx is canceled or Close is
// called; a job already pouring always runs to completion.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < c.cfg.MaxConcurrentJobs; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
	c.log.Infof("mixing coordinator started with %d worker(s), queue %d", c.cfg.MaxConcurrentJobs, c.cfg.QueueSize)
}

// Close stops accepting orders, waits for running jobs and fails the jobs
// that never started.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	c.wg.Wait()
	for e := range c.queue {
		c.abort(e, ErrClosed)
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.journal.Close()
}

func (c *Coordinator) worker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-c.queue:
			if !ok {
				return
			}
			if c.isClosed() {
				c.abort(e, ErrClosed)
				continue
			}
			c.run(ctx, e)
		}
	}
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// StartMix resolves and checks the cocktail, queues a job and returns the
// order without waiting for the liquids. Nothing is actuated when an error is
// returned.
func (c *Coordinator) StartMix(ctx context.Context, cocktailID int) (Order, error) {
	plan, err := c.planner.Resolve(ctx, cocktailID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			ordersRejected.WithLabelValues("not_found").Inc()
			return Order{}, fmt.Errorf("%w: %w", ErrCocktailUnavailable, err)
		}
		return Order{}, err
	}
	shortages, err := c.checker.Shortages(ctx, plan)
	if err != nil {
		return Order{}, err
	}
	if len(shortages) > 0 {
		ordersRejected.WithLabelValues("unavailable").Inc()
		return Order{}, &UnavailableError{CocktailID: plan.CocktailID, Cocktail: plan.Name, Shortages: shortages}
	}

	e := &entry{job: newJob(uuid.NewString(), plan, time.Now()), done: make(chan struct{})}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Order{}, ErrClosed
	}
	select {
	case c.queue <- e:
	default:
		c.mu.Unlock()
		ordersRejected.WithLabelValues("busy").Inc()
		return Order{}, ErrBusy
	}
	c.jobs[e.job.ID] = e
	c.order = append(c.order, e.job.ID)
	c.trimLocked()
	c.pending.Add(1)
	queueDepth.Inc()
	// published under the lock so that it precedes the worker's events
	c.publish(e.job, nil)
	c.mu.Unlock()

	c.log.Infow("mix queued", map[string]any{"job_id": e.job.ID, "cocktail": plan.Name, "channels": len(plan.Liquid)})
	return Order{JobID: e.job.ID, Plan: plan, Instructions: plan.Instructions()}, nil
}

// trimLocked drops the oldest finished jobs beyond the history size.
func (c *Coordinator) trimLocked() {
	excess := len(c.order) - c.cfg.HistorySize
	if excess <= 0 {
		return
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if excess > 0 && c.jobs[id].job.State.Finished() {
			delete(c.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
}

func (c *Coordinator) update(e *entry, fn func(j *Job)) Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&e.job)
	return e.job.clone()
}

func (c *Coordinator) run(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("mix job %s panicked: %v", e.job.ID, r)
			c.monitor.CaptureException(err, map[string]string{"job_id": e.job.ID})
			c.abort(e, err)
		}
	}()

	job := c.update(e, func(j *Job) {
		j.State = JobRunning
		j.Started = time.Now()
	})
	c.publish(job, nil)
	c.log.Infof("mixing %s (job %s)", job.Cocktail, job.ID)

	reqs := make([]actuation.Request, len(job.Plan.Liquid))
	for i, l := range job.Plan.Liquid {
		reqs[i] = actuation.Request{Channel: l.Channel, IngredientID: l.IngredientID, AmountML: l.AmountML}
	}
	results := c.actuator.ActuateMany(ctx, reqs)

	// the liquid is in the glass, so the commit must not be canceled
	commitCtx := context.WithoutCancel(ctx)
	statuses := append([]ChannelStatus(nil), job.Channels...)
	for i := range statuses {
		st := &statuses[i]
		if i >= len(results) {
			st.State = ChannelFailed
			st.Error = "no actuation result"
			continue
		}
		res := results[i]
		st.Duration = res.Duration.Seconds()
		if !res.Poured() {
			st.State = ChannelFailed
			st.Error = res.Err.Error()
			c.monitor.CaptureException(res.Err, map[string]string{
				"job_id":   job.ID,
				"cocktail": job.Cocktail,
				"channel":  strconv.Itoa(st.Channel),
			})
			c.log.Errorf("job %s: channel %d (%s) failed: %v", job.ID, st.Channel, st.Ingredient, res.Err)
			continue
		}
		st.State = ChannelOK
		if res.Err != nil {
			// poured, but the output may still be on
			st.Error = res.Err.Error()
			c.monitor.CaptureException(res.Err, map[string]string{
				"job_id":   job.ID,
				"cocktail": job.Cocktail,
				"channel":  strconv.Itoa(st.Channel),
			})
			c.log.Errorf("job %s: channel %d (%s) not switched off: %v", job.ID, st.Channel, st.Ingredient, res.Err)
		}
		c.commit(commitCtx, job.ID, st)
	}

	job = c.update(e, func(j *Job) {
		j.Channels = statuses
		j.State = outcome(statuses)
		j.Finished = time.Now()
		if j.State != JobDone {
			j.Error = fmt.Sprintf("%d of %d channel(s) failed", countFailed(statuses), len(statuses))
		}
	})
	c.finish(e, job)
}

// commit removes a delivered amount from the inventory. A failed commit is
// reported but does not change the channel outcome: the liquid was poured.
func (c *Coordinator) commit(ctx context.Context, jobID string, st *ChannelStatus) {
	ing, err := c.inventory.DecrementAfterUse(ctx, st.IngredientID, st.AmountML)
	if err != nil {
		st.Error = fmt.Sprintf("inventory commit: %v", err)
		c.monitor.CaptureException(err, map[string]string{"job_id": jobID, "ingredient": st.Ingredient})
		c.log.Errorf("job %s: commit %s failed: %v", jobID, st.Ingredient, err)
		return
	}
	st.CommittedML = st.AmountML
	c.bus.Publish(events.InventoryEvent{
		IngredientID: ing.ID,
		Name:         ing.Name,
		DeltaML:      -st.AmountML,
		LevelML:      ing.LevelML,
		Reason:       "mix",
		Time:         time.Now(),
	})
}

func countFailed(statuses []ChannelStatus) int {
	n := 0
	for _, s := range statuses {
		if s.State != ChannelOK {
			n++
		}
	}
	return n
}

func (c *Coordinator) abort(e *entry, cause error) {
	job := c.update(e, func(j *Job) {
		if j.State.Finished() {
			return
		}
		j.State = JobFailed
		j.Error = cause.Error()
		j.Finished = time.Now()
		for i := range j.Channels {
			if j.Channels[i].State == ChannelPending {
				j.Channels[i].State = ChannelFailed
			}
		}
	})
	select {
	case <-e.done:
		return
	default:
	}
	c.finish(e, job)
}

// finish records a terminal job everywhere and releases waiters. It runs
// once per job.
func (c *Coordinator) finish(e *entry, job Job) {
	e.finished.Do(func() { c.settle(e, job) })
}

func (c *Coordinator) settle(e *entry, job Job) {
	defer func() {
		c.pending.Add(-1)
		queueDepth.Dec()
		close(e.done)
	}()
	var cause error
	if job.Error != "" {
		cause = errors.New(job.Error)
	}
	c.publish(job, cause)
	c.record(job)

	fields := map[string]any{"job_id": job.ID, "cocktail": job.Cocktail, "state": job.State.String()}
	if job.State == JobDone {
		c.log.Infow("mix finished", fields)
	} else {
		c.log.Warnf("mix %s finished %s: %s", job.ID, job.State, job.Error)
	}
}

func (c *Coordinator) record(job Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("recording job %s panicked: %v", job.ID, r)
			c.monitor.CaptureException(err, map[string]string{"job_id": job.ID})
			c.log.Errorf("%v", err)
		}
	}()
	rec := journal.Record{
		Timestamp:  job.Finished,
		JobID:      job.ID,
		CocktailID: job.CocktailID,
		Cocktail:   job.Cocktail,
		State:      job.State.String(),
		Error:      job.Error,
		Duration:   job.Finished.Sub(job.Queued).Seconds(),
		Manual:     job.Plan.Instructions(),
	}
	mix := metrics.MixRecord{
		JobID:      job.ID,
		CocktailID: job.CocktailID,
		Cocktail:   job.Cocktail,
		Alcoholic:  job.Plan.Alcoholic,
		State:      job.State.String(),
		Time:       job.Finished,
	}
	if !job.Started.IsZero() {
		mix.Duration = job.Finished.Sub(job.Started)
	}
	for _, ch := range job.Channels {
		rec.Channels = append(rec.Channels, journal.ChannelResult{
			Channel:      ch.Channel,
			IngredientID: ch.IngredientID,
			Ingredient:   ch.Ingredient,
			AmountML:     ch.AmountML,
			CommittedML:  ch.CommittedML,
			DurationS:    ch.Duration,
			Error:        ch.Error,
		})
		mix.Channels = append(mix.Channels, metrics.ChannelRecord{
			Channel:      ch.Channel,
			IngredientID: ch.IngredientID,
			Ingredient:   ch.Ingredient,
			AmountML:     ch.AmountML,
			Duration:     time.Duration(ch.Duration * float64(time.Second)),
			OK:           ch.State == ChannelOK,
		})
	}
	if err := c.journal.Append(context.Background(), rec); err != nil {
		c.log.Errorf("journal append failed: %v", err)
	}
	if err := c.sink.RecordMixResult(mix); err != nil {
		c.log.Errorf("metrics sink error: %v", err)
	}
}

func (c *Coordinator) publish(job Job, err error) {
	c.bus.Publish(events.JobEvent{
		JobID:      job.ID,
		CocktailID: job.CocktailID,
		Cocktail:   job.Cocktail,
		State:      job.State.String(),
		Err:        err,
		Time:       time.Now(),
	})
}

// Job returns a snapshot of the job with the given id.
func (c *Coordinator) Job(id string) (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.job.clone(), true
}

// Jobs returns snapshots of the known jobs, oldest first.
func (c *Coordinator) Jobs() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Job, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.jobs[id].job.clone())
	}
	return out
}

// IsMixing reports whether a job is queued or pouring.
func (c *Coordinator) IsMixing() bool { return c.pending.Load() > 0 }

// Wait blocks until the job is finished or ctx is done.
func (c *Coordinator) Wait(ctx context.Context, id string) (Job, error) {
	c.mu.Lock()
	e, ok := c.jobs[id]
	c.mu.Unlock()
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, model.ErrNotFound)
	}
	select {
	case <-e.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return e.job.clone(), nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Journal exposes the store finished jobs are written to.
func (c *Coordinator) Journal() journal.Store { return c.journal }
