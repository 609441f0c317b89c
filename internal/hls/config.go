package hls

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hls-live/internal/media"
)

// Slicing selects how fragment cut points are chosen.
type Slicing int

const (
	// SlicingPlain cuts on the first candidate boundary after the target length.
	SlicingPlain Slicing = iota + 1
	// SlicingAligned snaps cuts to fixed-length timestamp buckets.
	SlicingAligned
)

// ParseSlicing maps "plain" or "aligned" to a Slicing value.
func ParseSlicing(s string) (Slicing, error) {
	switch strings.ToLower(s) {
	case "plain":
		return SlicingPlain, nil
	case "aligned":
		return SlicingAligned, nil
	}
	return 0, fmt.Errorf("%w: slicing mode %q", ErrInvalidConfig, s)
}

func (s Slicing) String() string {
	switch s {
	case SlicingPlain:
		return "plain"
	case SlicingAligned:
		return "aligned"
	}
	return "unknown"
}

// PlaylistType is the advertised playlist type.
type PlaylistType int

const (
	PlaylistLive PlaylistType = iota + 1
	PlaylistEvent
)

// ParsePlaylistType maps "live" or "event" to a PlaylistType value.
func ParsePlaylistType(s string) (PlaylistType, error) {
	switch strings.ToLower(s) {
	case "live":
		return PlaylistLive, nil
	case "event":
		return PlaylistEvent, nil
	}
	return 0, fmt.Errorf("%w: playlist type %q", ErrInvalidConfig, s)
}

func (t PlaylistType) String() string {
	switch t {
	case PlaylistLive:
		return "live"
	case PlaylistEvent:
		return "event"
	}
	return "unknown"
}

// Defaults applied by WithDefaults to zero-valued fields.
const (
	DefaultFragmentLength = 5 * time.Second
	DefaultPlaylistLength = 30 * time.Second
	DefaultMinFragments   = 2
	DefaultQueueDepth     = 4096
)

// ErrInvalidConfig is returned by Validate and the Parse helpers.
var ErrInvalidConfig = errors.New("invalid hls configuration")

// Config is the immutable per-application segmenter configuration.
type Config struct {
	FragmentLength    time.Duration
	MaxFragmentLength time.Duration
	PlaylistLength    time.Duration
	MinFragments      int
	Slicing           Slicing
	Type              PlaylistType
	IdleTimeout       time.Duration
	BaseURL           string

	// QueueDepth is the content-queue capacity of every fragment.
	QueueDepth int
	// MaxFragments caps fragment records outstanding in the application
	// pool. Zero means unlimited.
	MaxFragments int
}

// WithDefaults returns a copy of c with unset fields filled in. Derived
// defaults (max fragment length, idle timeout) follow the configured lengths.
func (c Config) WithDefaults() Config {
	if c.FragmentLength <= 0 {
		c.FragmentLength = DefaultFragmentLength
	}
	if c.MaxFragmentLength <= 0 {
		c.MaxFragmentLength = 10 * c.FragmentLength
	}
	if c.PlaylistLength <= 0 {
		c.PlaylistLength = DefaultPlaylistLength
	}
	if c.MinFragments <= 0 {
		c.MinFragments = DefaultMinFragments
	}
	if c.Slicing == 0 {
		c.Slicing = SlicingPlain
	}
	if c.Type == 0 {
		c.Type = PlaylistLive
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * c.PlaylistLength
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	return c
}

// WindowFragments returns W, the number of fragments advertised in a full
// playlist window.
func (c Config) WindowFragments() int {
	if c.FragmentLength <= 0 {
		return 0
	}
	return int(c.PlaylistLength / c.FragmentLength)
}

// Validate reports whether c describes a usable segmenter.
func (c Config) Validate() error {
	w := c.WindowFragments()
	switch {
	case c.FragmentLength <= 0:
		return fmt.Errorf("%w: fragment length must be positive", ErrInvalidConfig)
	case w < 1:
		return fmt.Errorf("%w: playlist length %s shorter than fragment length %s",
			ErrInvalidConfig, c.PlaylistLength, c.FragmentLength)
	case c.MinFragments > w:
		return fmt.Errorf("%w: min fragments %d exceeds window of %d",
			ErrInvalidConfig, c.MinFragments, w)
	case c.MaxFragmentLength < c.FragmentLength:
		return fmt.Errorf("%w: max fragment length below fragment length", ErrInvalidConfig)
	case c.Slicing != SlicingPlain && c.Slicing != SlicingAligned:
		return fmt.Errorf("%w: slicing mode %d", ErrInvalidConfig, c.Slicing)
	case c.Type != PlaylistLive && c.Type != PlaylistEvent:
		return fmt.Errorf("%w: playlist type %d", ErrInvalidConfig, c.Type)
	case c.QueueDepth < 1:
		return fmt.Errorf("%w: queue depth must be positive", ErrInvalidConfig)
	case c.MaxFragments < 0:
		return fmt.Errorf("%w: max fragments must not be negative", ErrInvalidConfig)
	}
	return nil
}

// HeaderFunc builds the container header prepended to every fragment
// response from the negotiated codec identifiers.
type HeaderFunc func(video, audio media.CodecID) []byte

// Application is one configuration scope. Sessions of the same application
// share its fragment pool.
type Application struct {
	Name   string
	Config Config
	Pool   *Pool

	header HeaderFunc
}

// ApplicationOption configures an Application.
type ApplicationOption func(*Application)

// WithHeader sets the container header builder used by Session.Prepare.
func WithHeader(fn HeaderFunc) ApplicationOption {
	return func(a *Application) { a.header = fn }
}

// NewApplication applies defaults to cfg, validates it, and returns an
// application scope with its own fragment pool.
func NewApplication(name string, cfg Config, opts ...ApplicationOption) (*Application, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("application %q: %w", name, err)
	}
	a := &Application{
		Name:   name,
		Config: cfg,
		Pool:   NewPool(cfg.QueueDepth, cfg.MaxFragments),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}
