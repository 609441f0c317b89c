package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hls-live/internal/hls"
)

// DefaultApplication is the application name used when HLS_APP is unset.
const DefaultApplication = "live"

// ApplicationFile is the on-disk application configuration. Durations are
// integer milliseconds; zero or missing values take the segmenter defaults.
type ApplicationFile struct {
	Applications map[string]ApplicationSpec `yaml:"applications"`
}

// ApplicationSpec is one application scope as written in the file.
type ApplicationSpec struct {
	FragmentLength    int    `yaml:"fragment_length"`
	MaxFragmentLength int    `yaml:"max_fragment_length"`
	PlaylistLength    int    `yaml:"playlist_length"`
	MinFragments      int    `yaml:"min_fragments_before_playable"`
	SlicingMode       string `yaml:"slicing_mode"`
	PlaylistType      string `yaml:"playlist_type"`
	IdleTimeout       int    `yaml:"idle_timeout"`
	BaseURL           string `yaml:"base_url"`
	QueueDepth        int    `yaml:"queue_depth"`
	MaxFragments      int    `yaml:"max_fragments"`
}

// Config converts the file representation into a segmenter config with
// defaults applied.
func (s ApplicationSpec) Config() (hls.Config, error) {
	c := hls.Config{
		FragmentLength:    ms(s.FragmentLength),
		MaxFragmentLength: ms(s.MaxFragmentLength),
		PlaylistLength:    ms(s.PlaylistLength),
		MinFragments:      s.MinFragments,
		IdleTimeout:       ms(s.IdleTimeout),
		BaseURL:           s.BaseURL,
		QueueDepth:        s.QueueDepth,
		MaxFragments:      s.MaxFragments,
	}
	if s.SlicingMode != "" {
		v, err := hls.ParseSlicing(s.SlicingMode)
		if err != nil {
			return hls.Config{}, err
		}
		c.Slicing = v
	}
	if s.PlaylistType != "" {
		v, err := hls.ParsePlaylistType(s.PlaylistType)
		if err != nil {
			return hls.Config{}, err
		}
		c.Type = v
	}
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return hls.Config{}, err
	}
	return c, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ParseApplications decodes and validates an application file.
func ParseApplications(data []byte) (map[string]hls.Config, error) {
	var f ApplicationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse application config: %w", err)
	}
	out := make(map[string]hls.Config, len(f.Applications))
	for name, spec := range f.Applications {
		c, err := spec.Config()
		if err != nil {
			return nil, fmt.Errorf("application %q: %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}

// LoadApplications reads the application file at path.
func LoadApplications(path string) (map[string]hls.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read application config: %w", err)
	}
	return ParseApplications(data)
}

// ApplicationFromEnv builds an application scope from the HLS_* environment
// variables.
func ApplicationFromEnv() (hls.Config, error) {
	return ApplicationSpec{
		FragmentLength:    GetEnvInt("HLS_FRAGMENT_LENGTH", 0),
		MaxFragmentLength: GetEnvInt("HLS_MAX_FRAGMENT_LENGTH", 0),
		PlaylistLength:    GetEnvInt("HLS_PLAYLIST_LENGTH", 0),
		MinFragments:      GetEnvInt("HLS_MINFRAGS", 0),
		SlicingMode:       GetEnv("HLS_SLICING", ""),
		PlaylistType:      GetEnv("HLS_TYPE", ""),
		IdleTimeout:       GetEnvInt("HLS_TIMEOUT", 0),
		BaseURL:           GetEnv("HLS_BASE_URL", ""),
		QueueDepth:        GetEnvInt("HLS_QUEUE_DEPTH", 0),
		MaxFragments:      GetEnvInt("HLS_MAX_FRAGMENTS", 0),
	}.Config()
}

// Applications returns every configured application scope: those of the file
// at path (if path is set) plus the environment-defined application named
// name when the file does not define it.
func Applications(path, name string) (map[string]hls.Config, error) {
	apps := map[string]hls.Config{}
	if path != "" {
		loaded, err := LoadApplications(path)
		if err != nil {
			return nil, err
		}
		apps = loaded
	}
	if _, ok := apps[name]; !ok {
		c, err := ApplicationFromEnv()
		if err != nil {
			return nil, fmt.Errorf("application %q: %w", name, err)
		}
		apps[name] = c
	}
	return apps, nil
}
