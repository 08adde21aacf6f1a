package main

import (
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		topic, payload string
		ch             int
		on             bool
		err            bool
	}{
		{"cmnd/mixbot/POWER1", "ON", 0, true, false},
		{"cmnd/mixbot/POWER19", "off", 18, false, false},
		{"cmnd/mixbot/POWER0", "ON", 0, false, true},
		{"cmnd/mixbot/STATUS", "ON", 0, false, true},
		{"cmnd/mixbot/POWER3", "TOGGLE", 0, false, true},
	}
	for _, c := range cases {
		ch, on, err := ParseCommand(c.topic, c.payload)
		if (err != nil) != c.err {
			t.Errorf("%s %s: unexpected error %v", c.topic, c.payload, err)
			continue
		}
		if !c.err && (ch != c.ch || on != c.on) {
			t.Errorf("%s %s: got %d %v", c.topic, c.payload, ch, on)
		}
	}
}

func TestBoardPouredVolume(t *testing.T) {
	b := NewBoard(4, 2, []int{3})
	now := time.Unix(0, 0)
	b.now = func() time.Time { return now }

	if on, err := b.Apply(1, true); err != nil || !on {
		t.Fatalf("switch on: %v %v", on, err)
	}
	if !b.Open(1) {
		t.Fatalf("relay 1 should be open")
	}
	now = now.Add(20 * time.Second)
	if _, err := b.Apply(1, false); err != nil {
		t.Fatalf("switch off: %v", err)
	}
	if got := b.Poured()[1]; got != 40 {
		t.Fatalf("expected 40ml got %v", got)
	}
	if on, _ := b.Apply(3, true); on {
		t.Fatalf("stuck relay switched on")
	}
	if _, err := b.Apply(4, true); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"-fail", "2, 5", "-channels", "8"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.FailChannels) != 2 || cfg.FailChannels[1] != 5 {
		t.Fatalf("unexpected fail channels %v", cfg.FailChannels)
	}
	if cfg.ClientID == "" {
		t.Fatalf("client id not generated")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
