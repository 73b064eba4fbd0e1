// Package assess implements the symptom-to-recommendation evaluator. It is
// intentionally dependency-free: it imports nothing from internal/ and can be
// tested without a database or network.
package assess

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLevel is returned by the parse functions for values outside the
// closed enumerations below.
var ErrUnknownLevel = errors.New("assess: unknown level")

// ─── SYMPTOM LEVEL ───────────────────────────────────────────────────────────

// Level is the four-step ladder shared by cough and fatigue. String values
// match what the mobile client sends.
type Level string

const (
	LevelNone     Level = "none"
	LevelMild     Level = "mild"
	LevelModerate Level = "moderate"
	LevelSevere   Level = "severe"
)

// ParseLevel normalises s and maps it onto a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LevelNone, nil
	case "mild":
		return LevelMild, nil
	case "moderate":
		return LevelModerate, nil
	case "severe":
		return LevelSevere, nil
	default:
		return "", fmt.Errorf("%w: symptom level %q", ErrUnknownLevel, s)
	}
}

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelNone, LevelMild, LevelModerate, LevelSevere:
		return true
	}
	return false
}

// points is the cough/fatigue ladder. Unknown values contribute nothing.
func (l Level) points() int {
	switch l {
	case LevelSevere:
		return 3
	case LevelModerate:
		return 2
	case LevelMild:
		return 1
	default:
		return 0
	}
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ─── REGIONAL ACTIVITY ───────────────────────────────────────────────────────

// ActivityLevel is the local influenza activity reported by the regional data
// source. The zero value means absent / unknown.
type ActivityLevel string

const (
	ActivityUnknown  ActivityLevel = ""
	ActivityNormal   ActivityLevel = "normal"
	ActivityModerate ActivityLevel = "moderate" // upstream + fallback records use it
	ActivityHigh     ActivityLevel = "high"
	ActivityVeryHigh ActivityLevel = "very high"
)

// ParseActivityLevel maps upstream spellings ("Very High", "very_high") onto
// an ActivityLevel. Empty input yields ActivityUnknown.
func ParseActivityLevel(s string) (ActivityLevel, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", " ")
	switch norm {
	case "":
		return ActivityUnknown, nil
	case "normal", "minimal", "low":
		return ActivityNormal, nil
	case "moderate":
		return ActivityModerate, nil
	case "high":
		return ActivityHigh, nil
	case "very high", "veryhigh":
		return ActivityVeryHigh, nil
	default:
		return "", fmt.Errorf("%w: activity level %q", ErrUnknownLevel, s)
	}
}

func (a *ActivityLevel) UnmarshalText(b []byte) error {
	v, err := ParseActivityLevel(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Signal is the regional illness-activity indicator fed into Evaluate.
// A nil *Signal means no regional data is available.
type Signal struct {
	ActivityLevel ActivityLevel `json:"activityLevel"`
}

// ─── REPORT ──────────────────────────────────────────────────────────────────

// Temperature bounds accepted by Validate. The client slider covers 97–105°F;
// the wider band only rejects obviously corrupt input.
const (
	minTemperatureF = 90.0
	maxTemperatureF = 110.0
)

// Report is one self-reported symptom snapshot. JSON names match the mobile
// client's form state so stored history stays readable by old builds.
type Report struct {
	Temperature       float64 `json:"fever"` // degrees Fahrenheit
	Cough             Level   `json:"cough"`
	SoreThroat        bool    `json:"soreThroat"`
	BodyAches         bool    `json:"bodyAches"`
	Headache          bool    `json:"headache"`
	Fatigue           Level   `json:"fatigue"`
	ShortnessOfBreath bool    `json:"shortnessOfBreath"`
	ChestPain         bool    `json:"chestPain"`
	Notes             string  `json:"additionalNotes,omitempty"` // never scored
}

// Validate checks enum membership and the temperature range. Evaluate does
// not call it; it is meant for input boundaries (HTTP, CLI).
func (r Report) Validate() error {
	var errs []error
	if !r.Cough.Valid() {
		errs = append(errs, fmt.Errorf("cough: %w: %q", ErrUnknownLevel, r.Cough))
	}
	if !r.Fatigue.Valid() {
		errs = append(errs, fmt.Errorf("fatigue: %w: %q", ErrUnknownLevel, r.Fatigue))
	}
	if r.Temperature < minTemperatureF || r.Temperature > maxTemperatureF {
		errs = append(errs, fmt.Errorf("fever: %.1f outside [%.0f, %.0f]°F", r.Temperature, minTemperatureF, maxTemperatureF))
	}
	return errors.Join(errs...)
}

// HasRedFlag reports whether either symptom that forces the highest tier is
// present.
func (r Report) HasRedFlag() bool {
	return r.ShortnessOfBreath || r.ChestPain
}

// ─── RECOMMENDATION ──────────────────────────────────────────────────────────

// Severity is in one-to-one correspondence with the recommendation text.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Recommendation texts shown to the user. Stored history records carry these
// verbatim, so changing them breaks SeverityOf for old rows.
const (
	RecommendSeeDoctor = "See a doctor"
	RecommendRest      = "Consider resting"
	RecommendSafe      = "Safe to go"

	explainSeeDoctor = "Your symptoms are severe and may require medical attention."
	explainRest      = "Your symptoms suggest you should stay home and recover."
	explainSafe      = "Your symptoms are mild. Consider wearing a mask to protect others."
)

// Recommendation is the evaluator output. Score is the scaled severity score,
// kept for display only.
type Recommendation struct {
	Recommendation string   `json:"recommendation"`
	Explanation    string   `json:"explanation"`
	Severity       Severity `json:"severity"`
	Score          float64  `json:"score"`
}

// SeverityOf maps a stored recommendation text back to its severity.
func SeverityOf(recommendation string) (Severity, bool) {
	switch recommendation {
	case RecommendSeeDoctor:
		return SeverityHigh, true
	case RecommendRest:
		return SeverityMedium, true
	case RecommendSafe:
		return SeverityLow, true
	}
	return "", false
}
