package hls

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{FragmentLength: 2 * time.Second}.WithDefaults()

	if c.MaxFragmentLength != 20*time.Second {
		t.Errorf("MaxFragmentLength = %s", c.MaxFragmentLength)
	}
	if c.PlaylistLength != DefaultPlaylistLength || c.IdleTimeout != 2*DefaultPlaylistLength {
		t.Errorf("PlaylistLength = %s IdleTimeout = %s", c.PlaylistLength, c.IdleTimeout)
	}
	if c.MinFragments != DefaultMinFragments || c.QueueDepth != DefaultQueueDepth {
		t.Errorf("MinFragments = %d QueueDepth = %d", c.MinFragments, c.QueueDepth)
	}
	if c.Slicing != SlicingPlain || c.Type != PlaylistLive {
		t.Errorf("Slicing = %s Type = %s", c.Slicing, c.Type)
	}
	if c.WindowFragments() != 15 {
		t.Errorf("WindowFragments = %d, want 15", c.WindowFragments())
	}
}

func TestConfig_Validate(t *testing.T) {
	base := Config{FragmentLength: 5 * time.Second, PlaylistLength: 30 * time.Second}.WithDefaults()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"window_below_one", func(c *Config) { c.PlaylistLength = 4 * time.Second }},
		{"min_fragments_above_window", func(c *Config) { c.MinFragments = 7 }},
		{"max_below_fragment", func(c *Config) { c.MaxFragmentLength = time.Second }},
		{"bad_slicing", func(c *Config) { c.Slicing = 9 }},
		{"bad_type", func(c *Config) { c.Type = 9 }},
		{"zero_queue", func(c *Config) { c.QueueDepth = 0 }},
		{"negative_max_fragments", func(c *Config) { c.MaxFragments = -1 }},
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseSlicingAndType(t *testing.T) {
	if s, err := ParseSlicing("Aligned"); err != nil || s != SlicingAligned {
		t.Errorf("ParseSlicing(Aligned) = %v, %v", s, err)
	}
	if _, err := ParseSlicing("wall"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if p, err := ParsePlaylistType("event"); err != nil || p != PlaylistEvent {
		t.Errorf("ParsePlaylistType(event) = %v, %v", p, err)
	}
	if _, err := ParsePlaylistType("vod"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewApplication_rejects_invalid(t *testing.T) {
	_, err := NewApplication("bad", Config{FragmentLength: 10 * time.Second, PlaylistLength: 5 * time.Second})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
