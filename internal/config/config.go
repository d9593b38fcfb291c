// Package config loads tunequeue settings from a yaml file, the
// environment, and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FSRSParams are the tunable parameters of the FSRS memory model.
type FSRSParams struct {
	A                float64 `koanf:"a" validate:"gt=0"`
	B                float64 `koanf:"b" validate:"gt=0"`
	C                float64 `koanf:"c" validate:"gt=0"`
	D                float64 `koanf:"d" validate:"gt=0"`
	DesiredRetention float64 `koanf:"desired_retention" validate:"gt=0,lt=1"`
}

// Settings is the full user/system configuration surface.
type Settings struct {
	UserID     string `koanf:"user_id" validate:"required"`
	PlaylistID string `koanf:"playlist_id" validate:"required"`
	DBPath     string `koanf:"db_path" validate:"required"`
	RemoteURL  string `koanf:"remote_url" validate:"omitempty,url"`

	SyncInterval time.Duration `koanf:"sync_interval" validate:"min=0"`

	// DelinquencyWindowDays separates "recently" from "long" overdue.
	// There is no canonical default; the user must choose one.
	DelinquencyWindowDays int `koanf:"acceptable_delinquency_window_days" validate:"min=1"`

	MinReviewsPerDay int      `koanf:"min_reviews_per_day" validate:"min=0"`
	MaxReviewsPerDay int      `koanf:"max_reviews_per_day" validate:"min=0"`
	PracticeDays     []string `koanf:"practice_days" validate:"dive,oneof=mon tue wed thu fri sat sun"`

	Genres []string `koanf:"genres"`

	Algorithm         string     `koanf:"algorithm" validate:"oneof=fsrs fixed"`
	FSRS              FSRSParams `koanf:"fsrs"`
	FixedIntervalDays int        `koanf:"fixed_interval_days" validate:"min=1"`
}

// Defaults returns settings with every field that has a sensible
// universal default filled in. DelinquencyWindowDays deliberately has
// none.
func Defaults() Settings {
	return Settings{
		DBPath:       "tunequeue.db",
		SyncInterval: 5 * time.Minute,
		PracticeDays: []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
		Algorithm:    "fsrs",
		FSRS: FSRSParams{
			A:                0.2,
			B:                0.5,
			C:                0.1,
			D:                4.0,
			DesiredRetention: 0.9,
		},
		FixedIntervalDays: 1,
	}
}

// Load merges defaults, the yaml file at path (if it exists), TUNEQUEUE_*
// environment variables, and flags, then validates the result.
func Load(path string, flags *pflag.FlagSet) (Settings, error) {
	k := koanf.New(".")

	defaults := Defaults()
	s := defaults

	// Seed koanf with the defaults so the flag provider can tell an
	// unset flag apart from a configured key. Without this, the empty
	// default of an unset flag would shadow a defaulted setting the
	// config file does not mention.
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return s, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return s, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return s, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider("TUNEQUEUE_", ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, "TUNEQUEUE_"))
	}), nil)
	if err != nil {
		return s, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return s, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := Validate(s); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks settings invariants beyond what the struct tags
// express: the review-per-day bounds must be ordered when both set.
func Validate(s Settings) error {
	v := validator.New()
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if s.MaxReviewsPerDay > 0 && s.MinReviewsPerDay > s.MaxReviewsPerDay {
		return fmt.Errorf("invalid settings: min_reviews_per_day %d exceeds max_reviews_per_day %d",
			s.MinReviewsPerDay, s.MaxReviewsPerDay)
	}
	return nil
}

// GenreSet returns the selected genres as a lookup set.
func (s Settings) GenreSet() map[string]bool {
	set := make(map[string]bool, len(s.Genres))
	for _, g := range s.Genres {
		set[g] = true
	}
	return set
}
