package mixing

import (
	"fmt"
	"time"

	"github.com/kilianp07/mixbot/core/model"
)

// JobState is the lifecycle position of a mix job.
type JobState int

const (
	JobQueued JobState = iota
	JobRunning
	// JobDone means every channel delivered its amount.
	JobDone
	// JobPartial means at least one channel failed and one succeeded.
	JobPartial
	// JobFailed means no channel delivered anything, or the job was aborted.
	JobFailed
)

var jobStateNames = map[JobState]string{
	JobQueued:  "queued",
	JobRunning: "running",
	JobDone:    "done",
	JobPartial: "partial",
	JobFailed:  "failed",
}

func (s JobState) String() string {
	if n, ok := jobStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("JobState(%d)", int(s))
}

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool { return s >= JobDone }

func (s JobState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *JobState) UnmarshalText(b []byte) error {
	for k, v := range jobStateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown job state %q", b)
}

// ChannelState tracks one liquid entry of a job.
type ChannelState string

const (
	ChannelPending ChannelState = "pending"
	ChannelOK      ChannelState = "ok"
	ChannelFailed  ChannelState = "failed"
)

// ChannelStatus is the per-channel outcome of a job. CommittedML is the
// amount removed from the inventory, which is zero unless the channel
// succeeded.
type ChannelStatus struct {
	Channel      int          `json:"pump_id"`
	IngredientID int          `json:"ingredient_id"`
	Ingredient   string       `json:"ingredient_name"`
	AmountML     float64      `json:"amount_ml"`
	State        ChannelState `json:"state"`
	CommittedML  float64      `json:"committed_ml"`
	Duration     float64      `json:"duration_s"`
	Error        string       `json:"error,omitempty"`
}

// Job is a snapshot of one mix request.
type Job struct {
	ID         string               `json:"job_id"`
	CocktailID int                  `json:"cocktail_id"`
	Cocktail   string               `json:"cocktail"`
	State      JobState             `json:"state"`
	Plan       model.DispensingPlan `json:"plan"`
	Channels   []ChannelStatus      `json:"channels"`
	Error      string               `json:"error,omitempty"`
	Queued     time.Time            `json:"queued_at"`
	Started    time.Time            `json:"started_at,omitzero"`
	Finished   time.Time            `json:"finished_at,omitzero"`
}

func (j Job) clone() Job {
	j.Channels = append([]ChannelStatus(nil), j.Channels...)
	return j
}

// Order is returned to the caller as soon as a job has been accepted. The
// manual instructions are available immediately, before any liquid is
// poured.
type Order struct {
	JobID        string               `json:"job_id"`
	Plan         model.DispensingPlan `json:"plan"`
	Instructions []string             `json:"instructions"`
}

func newJob(id string, plan model.DispensingPlan, now time.Time) Job {
	j := Job{
		ID:         id,
		CocktailID: plan.CocktailID,
		Cocktail:   plan.Name,
		State:      JobQueued,
		Plan:       plan,
		Channels:   make([]ChannelStatus, len(plan.Liquid)),
		Queued:     now,
	}
	for i, e := range plan.Liquid {
		j.Channels[i] = ChannelStatus{
			Channel:      e.Channel,
			IngredientID: e.IngredientID,
			Ingredient:   e.Name,
			AmountML:     e.AmountML,
			State:        ChannelPending,
		}
	}
	return j
}

// outcome derives the terminal state from the channel results.
func outcome(channels []ChannelStatus) JobState {
	ok := 0
	for _, c := range channels {
		if c.State == ChannelOK {
			ok++
		}
	}
	switch {
	case ok == len(channels):
		return JobDone
	case ok == 0:
		return JobFailed
	default:
		return JobPartial
	}
}
