package policy

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Level classifies the message tier attached to a decision.
type Level uint8

const (
	LevelNone Level = iota
	LevelCaution
	LevelFinalWarning
	LevelBlocked
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelCaution:
		return "caution"
	case LevelFinalWarning:
		return "final_warning"
	case LevelBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// AfterBlock selects how the first failure after a lapsed block is counted.
type AfterBlock uint8

const (
	// AfterBlockReset starts a fresh count once a block has lapsed.
	AfterBlockReset AfterBlock = iota
	// AfterBlockEscalate keeps counting, so the next failure blocks again.
	AfterBlockEscalate
)

func (a AfterBlock) String() string {
	switch a {
	case AfterBlockReset:
		return "reset"
	case AfterBlockEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// ParseAfterBlock maps a config string onto an AfterBlock mode.
func ParseAfterBlock(s string) (AfterBlock, error) {
	switch s {
	case "", "reset":
		return AfterBlockReset, nil
	case "escalate":
		return AfterBlockEscalate, nil
	default:
		return 0, fmt.Errorf("unknown after-block mode %q", s)
	}
}

// Tier attaches a warning to counts at or above Threshold.
type Tier struct {
	Threshold int
	Level     Level
	Message   string
}

const (
	defaultCautionMessage      = "Please double-check your password."
	defaultFinalWarningMessage = "This is your last attempt before a temporary lockout. Consider resetting your password."
)

// Config holds the throttle policy. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	MaxAttempts   int
	BlockDuration time.Duration
	RecordTTL     time.Duration
	Tiers         []Tier
	AfterBlock    AfterBlock

	// BlockedMessage renders the blocked message for the remaining block
	// time. Nil uses the default English rendering.
	BlockedMessage func(remaining time.Duration) string
}

// DefaultConfig returns five attempts, a ten minute block and a thirty
// minute record lifetime.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		BlockDuration: 10 * time.Minute,
		RecordTTL:     30 * time.Minute,
		Tiers:         DefaultTiers(),
		AfterBlock:    AfterBlockReset,
	}
}

// DefaultTiers returns the caution and final-warning tiers at three and four
// failures.
func DefaultTiers() []Tier {
	return TiersFor(5)
}

// TiersFor places the final warning one failure before maxAttempts and the
// caution one failure before that. Thresholds below one are dropped.
func TiersFor(maxAttempts int) []Tier {
	tiers := make([]Tier, 0, 2)
	if maxAttempts-1 >= 1 {
		tiers = append(tiers, Tier{Threshold: maxAttempts - 1, Level: LevelFinalWarning, Message: defaultFinalWarningMessage})
	}
	if maxAttempts-2 >= 1 {
		tiers = append(tiers, Tier{Threshold: maxAttempts - 2, Level: LevelCaution, Message: defaultCautionMessage})
	}
	return tiers
}

// Validate checks the policy for internal consistency.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("policy MaxAttempts must be >= 1")
	}
	if c.BlockDuration <= 0 {
		return errors.New("policy BlockDuration must be > 0")
	}
	if c.RecordTTL <= 0 {
		return errors.New("policy RecordTTL must be > 0")
	}
	// A record that expires before its block ends would let the block
	// evaporate on the next read.
	if c.RecordTTL < c.BlockDuration {
		return errors.New("policy RecordTTL must be >= BlockDuration")
	}
	if c.AfterBlock != AfterBlockReset && c.AfterBlock != AfterBlockEscalate {
		return errors.New("policy AfterBlock is invalid")
	}

	seen := make(map[int]struct{}, len(c.Tiers))
	for _, tier := range c.Tiers {
		if tier.Threshold < 1 || tier.Threshold >= c.MaxAttempts {
			return fmt.Errorf("policy tier threshold %d must be in [1, MaxAttempts)", tier.Threshold)
		}
		if tier.Level != LevelCaution && tier.Level != LevelFinalWarning {
			return fmt.Errorf("policy tier %d level must be caution or final_warning", tier.Threshold)
		}
		if _, dup := seen[tier.Threshold]; dup {
			return fmt.Errorf("policy tier threshold %d is duplicated", tier.Threshold)
		}
		seen[tier.Threshold] = struct{}{}
	}

	return nil
}

// tierFor walks the tiers from the highest threshold down and returns the
// first one count reaches.
func (c Config) tierFor(count int) (Tier, bool) {
	tiers := slices.Clone(c.Tiers)
	slices.SortFunc(tiers, func(a, b Tier) int { return b.Threshold - a.Threshold })

	for _, tier := range tiers {
		if count >= tier.Threshold {
			return tier, true
		}
	}
	return Tier{}, false
}

func (c Config) blockedMessage(remaining time.Duration) string {
	if c.BlockedMessage != nil {
		return c.BlockedMessage(remaining)
	}
	return DefaultBlockedMessage(remaining)
}

// DefaultBlockedMessage renders the lockout message with the remaining time
// rounded up to whole minutes.
func DefaultBlockedMessage(remaining time.Duration) string {
	minutes := int(math.Ceil(remaining.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	if minutes == 1 {
		return "Too many failed attempts. Sign-in is locked for 1 minute."
	}
	return fmt.Sprintf("Too many failed attempts. Sign-in is locked for %d minutes.", minutes)
}
