package importer

import "fmt"

// Validation policies.
const (
	// ValidationReachable requires email or phone.
	ValidationReachable = "reachable"
	// ValidationStrict requires firstName, lastName, email and phone.
	ValidationStrict = "strict"
)

// Duplicate-target policies.
const (
	// DuplicateLastWins lets the later header in header order overwrite.
	DuplicateLastWins = "last_wins"
	// DuplicateReject refuses mappings with two headers on one target.
	DuplicateReject = "reject"
)

const (
	defaultBatchSize    = 100
	defaultMaxRowErrors = 100
)

// Config tunes an Executor.
type Config struct {
	BatchSize        int
	Validation       string
	DuplicateTargets string
	Concurrency      int
	// MaxRowErrors caps Result.RowErrors. The Errors counter is not capped.
	MaxRowErrors int
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:        defaultBatchSize,
		Validation:       ValidationReachable,
		DuplicateTargets: DuplicateLastWins,
		Concurrency:      1,
		MaxRowErrors:     defaultMaxRowErrors,
	}
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Validation == "" {
		c.Validation = ValidationReachable
	}
	if c.DuplicateTargets == "" {
		c.DuplicateTargets = DuplicateLastWins
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxRowErrors <= 0 {
		c.MaxRowErrors = defaultMaxRowErrors
	}
	return c
}

// Validate checks policy names.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Validation != ValidationReachable && c.Validation != ValidationStrict {
		return fmt.Errorf("unknown validation policy %q", c.Validation)
	}
	if c.DuplicateTargets != DuplicateLastWins && c.DuplicateTargets != DuplicateReject {
		return fmt.Errorf("unknown duplicate_targets policy %q", c.DuplicateTargets)
	}
	return nil
}
