package assess

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

// Fever bands in °F. Both comparisons are strict; the higher band is checked
// first so a reading above 100.4 scores 3, never 1.
const (
	feverHighF = 100.4
	feverLowF  = 99.5
)

// Point weights for the boolean symptoms.
const (
	soreThroatPoints        = 1
	bodyAchesPoints         = 2
	headachePoints          = 1
	shortnessOfBreathPoints = 4
	chestPainPoints         = 4
)

// Tier thresholds are inclusive lower bounds on the scaled score.
const (
	seeDoctorThreshold = 10.0
	restThreshold      = 5.0
)

// Regional multipliers.
const (
	riskFactorNeutral  = 1.0
	riskFactorHigh     = 1.5
	riskFactorVeryHigh = 2.0
)

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// BaseScore is the additive point score for r before any regional scaling.
// Unknown Level values contribute zero.
func BaseScore(r Report) int {
	score := 0

	switch {
	case r.Temperature > feverHighF:
		score += 3
	case r.Temperature > feverLowF:
		score += 1
	}

	score += r.Cough.points()

	if r.SoreThroat {
		score += soreThroatPoints
	}
	if r.BodyAches {
		score += bodyAchesPoints
	}
	if r.Headache {
		score += headachePoints
	}

	score += r.Fatigue.points()

	if r.ShortnessOfBreath {
		score += shortnessOfBreathPoints
	}
	if r.ChestPain {
		score += chestPainPoints
	}

	return score
}

// RiskFactor returns the multiplier for the regional signal. Absent signals,
// "normal", "moderate" and anything unrecognised are neutral.
func RiskFactor(sig *Signal) float64 {
	if sig == nil {
		return riskFactorNeutral
	}
	switch sig.ActivityLevel {
	case ActivityVeryHigh:
		return riskFactorVeryHigh
	case ActivityHigh:
		return riskFactorHigh
	default:
		return riskFactorNeutral
	}
}

// Classify maps a scaled score to a Recommendation. Shortness of breath or
// chest pain forces the highest tier whatever the score.
//
//	See a doctor:     final >= 10, or any red flag
//	Consider resting: 5 <= final < 10
//	Safe to go:       final < 5
func Classify(final float64, r Report) Recommendation {
	switch {
	case final >= seeDoctorThreshold || r.HasRedFlag():
		return Recommendation{
			Recommendation: RecommendSeeDoctor,
			Explanation:    explainSeeDoctor,
			Severity:       SeverityHigh,
			Score:          final,
		}
	case final >= restThreshold:
		return Recommendation{
			Recommendation: RecommendRest,
			Explanation:    explainRest,
			Severity:       SeverityMedium,
			Score:          final,
		}
	default:
		return Recommendation{
			Recommendation: RecommendSafe,
			Explanation:    explainSafe,
			Severity:       SeverityLow,
			Score:          final,
		}
	}
}

// Evaluate scores a report, scales it by the regional signal (nil when no
// regional data is held) and classifies the result. It is pure and total:
// every input yields a Recommendation.
func Evaluate(r Report, sig *Signal) Recommendation {
	final := float64(BaseScore(r)) * RiskFactor(sig)
	return Classify(final, r)
}
