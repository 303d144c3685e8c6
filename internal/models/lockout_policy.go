package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TimeUnit is the unit an administrator expresses lockout durations in
type TimeUnit string

const (
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
	UnitDay    TimeUnit = "day"
)

var unitSeconds = map[TimeUnit]int64{
	UnitMinute: 60,
	UnitHour:   60 * 60,
	UnitDay:    24 * 60 * 60,
}

// ParseTimeUnit accepts singular or plural unit names, case-insensitively.
func ParseTimeUnit(s string) (TimeUnit, error) {
	u := TimeUnit(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if _, ok := unitSeconds[u]; !ok {
		return "", fmt.Errorf("%w: unknown time unit %q", ErrInvalidPolicy, s)
	}
	return u, nil
}

// UnmarshalText lets JSON and YAML settings use any form ParseTimeUnit accepts.
func (u *TimeUnit) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// DurationSetting is a duration expressed as (value, unit), e.g. 24 hour.
type DurationSetting struct {
	Value int      `json:"value" yaml:"value" validate:"gte=1"`
	Unit  TimeUnit `json:"unit" yaml:"unit" validate:"required,oneof=minute hour day"`
}

// Seconds converts the setting to absolute seconds. Unknown units yield 0.
func (d DurationSetting) Seconds() int64 {
	return int64(d.Value) * unitSeconds[d.Unit]
}

// Duration converts the setting to a time.Duration.
func (d DurationSetting) Duration() time.Duration {
	return time.Duration(d.Seconds()) * time.Second
}

func (d DurationSetting) String() string {
	unit := string(d.Unit)
	if d.Value != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", d.Value, unit)
}

// PolicySettings is the administrator-facing form of a lockout policy
type PolicySettings struct {
	Threshold       int             `json:"threshold" yaml:"threshold" validate:"gte=1"`
	ThresholdWindow DurationSetting `json:"threshold_duration" yaml:"threshold_duration"`
	LockoutDuration DurationSetting `json:"lockout_duration" yaml:"lockout_duration"`
}

// DefaultPolicySettings returns 5 failures within 1 hour locking for 24 hours.
func DefaultPolicySettings() PolicySettings {
	return PolicySettings{
		Threshold:       5,
		ThresholdWindow: DurationSetting{Value: 1, Unit: UnitHour},
		LockoutDuration: DurationSetting{Value: 24, Unit: UnitHour},
	}
}

// LockoutPolicy is the resolved policy the guard decides with
type LockoutPolicy struct {
	Threshold       int
	ThresholdWindow time.Duration
	LockoutDuration time.Duration
}

var policyValidate = validator.New()

// NewLockoutPolicy validates settings and converts them to absolute durations.
func NewLockoutPolicy(settings PolicySettings) (LockoutPolicy, error) {
	if err := policyValidate.Struct(settings); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return LockoutPolicy{}, fmt.Errorf("%w: %s failed %q", ErrInvalidPolicy, ve[0].Namespace(), ve[0].Tag())
		}
		return LockoutPolicy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	policy := LockoutPolicy{
		Threshold:       settings.Threshold,
		ThresholdWindow: settings.ThresholdWindow.Duration(),
		LockoutDuration: settings.LockoutDuration.Duration(),
	}
	if err := policy.Validate(); err != nil {
		return LockoutPolicy{}, err
	}
	return policy, nil
}

// Validate rejects thresholds below one and non-positive durations.
func (p LockoutPolicy) Validate() error {
	if p.Threshold < 1 {
		return fmt.Errorf("%w: threshold must be at least 1, got %d", ErrInvalidPolicy, p.Threshold)
	}
	if p.ThresholdWindow <= 0 {
		return fmt.Errorf("%w: threshold window must be positive", ErrInvalidPolicy)
	}
	if p.LockoutDuration <= 0 {
		return fmt.Errorf("%w: lockout duration must be positive", ErrInvalidPolicy)
	}
	return nil
}
