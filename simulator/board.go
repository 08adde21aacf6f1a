package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Board mimics a relay board driven by POWER<n> ON/OFF commands.
type Board struct {
	mu     sync.Mutex
	flow   float64
	stuck  map[int]bool
	opened []time.Time
	poured []float64
	now    func() time.Time
}

// NewBoard returns a board with n relays, all off.
func NewBoard(n int, flow float64, stuck []int) *Board {
	b := &Board{
		flow:   flow,
		stuck:  map[int]bool{},
		opened: make([]time.Time, n),
		poured: make([]float64, n),
		now:    time.Now,
	}
	for _, ch := range stuck {
		b.stuck[ch] = true
	}
	return b
}

// ParseCommand extracts the zero based channel from a topic ending in
// POWER<n> and the requested state from the payload.
func ParseCommand(topic, payload string) (int, bool, error) {
	i := strings.LastIndex(topic, "/POWER")
	if i < 0 {
		return 0, false, fmt.Errorf("not a power topic: %s", topic)
	}
	n, err := strconv.Atoi(topic[i+len("/POWER"):])
	if err != nil || n < 1 {
		return 0, false, fmt.Errorf("bad relay index in %s", topic)
	}
	switch strings.ToUpper(payload) {
	case "ON", "1":
		return n - 1, true, nil
	case "OFF", "0":
		return n - 1, false, nil
	default:
		return 0, false, fmt.Errorf("bad payload %q", payload)
	}
}

// Apply switches a relay and returns its resulting state.
func (b *Board) Apply(ch int, on bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch < 0 || ch >= len(b.opened) {
		return false, fmt.Errorf("relay %d out of range", ch)
	}
	if on && b.stuck[ch] {
		return false, nil
	}
	open := !b.opened[ch].IsZero()
	switch {
	case on && !open:
		b.opened[ch] = b.now()
	case !on && open:
		b.poured[ch] += b.now().Sub(b.opened[ch]).Seconds() * b.flow
		b.opened[ch] = time.Time{}
	}
	return on, nil
}

// Open reports whether relay ch is on.
func (b *Board) Open(ch int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ch >= 0 && ch < len(b.opened) && !b.opened[ch].IsZero()
}

// Poured returns the estimated volume per relay for relays that ran.
func (b *Board) Poured() map[int]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[int]float64{}
	for ch, ml := range b.poured {
		if ml > 0 {
			out[ch] = ml
		}
	}
	return out
}
