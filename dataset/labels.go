package dataset

import (
	"sleepdx.com/sdp/types"
)

type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}

// Outcome is one label with its probability inside a table cell.
type Outcome struct {
	Label string
	P     float64
}

// Distribution is a table cell. Probabilities sum to 1.
type Distribution []Outcome

var levelMultipliers = [4]float64{0.5, 0.8, 1.2, 1.8}

// RiskScore is the composite score the synthetic labels are derived from.
func RiskScore(r types.FeatureRecord) float64 {
	level := academicLevel(r)
	base := r[types.StressLevel]*5.0 +
		(11-r[types.SleepQuality])*3.0 +
		positive(60-r[types.PhysicalActivity])*2.0 +
		float64(level)*3.0 +
		abs(8-r[types.SleepDuration])*1.0 +
		positive(r[types.SystolicBP]-120)*0.5 +
		positive(r[types.HeartRate]-80)*0.3 +
		r[types.BMICategory]*0.5 +
		positive(8000-r[types.DailySteps])*0.0002 +
		positive(r[types.Age]-40)*0.2 +
		r[types.Gender]*0.1
	return base * levelMultipliers[level]
}

// TierOf classifies a record with level-adjusted thresholds. The high tier
// also requires stress of at least 7 - level.
func TierOf(r types.FeatureRecord) Tier {
	level := float64(academicLevel(r))
	score := RiskScore(r)
	if score > 25-3*level && r[types.StressLevel] >= 7-level {
		return TierHigh
	}
	if score > 15-2*level {
		return TierMedium
	}
	return TierLow
}

// LabelDistribution is the label probability table indexed by (tier,
// academic level). A few cells are conditioned on further vitals:
//
//	high   L3  Insomnia .9, Sleep Apnea .1
//	high   L2  Insomnia .8, Sleep Apnea .2
//	high   L1  HR > 85 or SBP > 140: Sleep Apnea .6, Insomnia .4; else Insomnia
//	high   L0  stress >= 8 and HR > 90: Sleep Apnea; else None
//	medium L3  Insomnia .8, None .2
//	medium L2  Insomnia .6, None .4
//	medium L1  Insomnia .21, Sleep Apnea .09, None .7
//	medium L0  None .97, Sleep Apnea .03
//	low    L3  stress >= 5: Insomnia .25, None .75; else None
//	low    L2  stress >= 6: Insomnia .12, None .88; else None
//	low    L1, L0  None
func LabelDistribution(tier Tier, r types.FeatureRecord) Distribution {
	level := academicLevel(r)
	stress := r[types.StressLevel]
	hr := r[types.HeartRate]
	switch tier {
	case TierHigh:
		switch level {
		case 3:
			return Distribution{{types.LabelInsomnia, 0.9}, {types.LabelSleepApnea, 0.1}}
		case 2:
			return Distribution{{types.LabelInsomnia, 0.8}, {types.LabelSleepApnea, 0.2}}
		case 1:
			if hr > 85 || r[types.SystolicBP] > 140 {
				return Distribution{{types.LabelSleepApnea, 0.6}, {types.LabelInsomnia, 0.4}}
			}
			return Distribution{{types.LabelInsomnia, 1}}
		default:
			if stress >= 8 && hr > 90 {
				return Distribution{{types.LabelSleepApnea, 1}}
			}
			return Distribution{{types.LabelNone, 1}}
		}
	case TierMedium:
		switch level {
		case 3:
			return Distribution{{types.LabelInsomnia, 0.8}, {types.LabelNone, 0.2}}
		case 2:
			return Distribution{{types.LabelInsomnia, 0.6}, {types.LabelNone, 0.4}}
		case 1:
			return Distribution{{types.LabelInsomnia, 0.21}, {types.LabelSleepApnea, 0.09}, {types.LabelNone, 0.7}}
		default:
			return Distribution{{types.LabelNone, 0.97}, {types.LabelSleepApnea, 0.03}}
		}
	default:
		switch {
		case level == 3 && stress >= 5:
			return Distribution{{types.LabelInsomnia, 0.25}, {types.LabelNone, 0.75}}
		case level == 2 && stress >= 6:
			return Distribution{{types.LabelInsomnia, 0.12}, {types.LabelNone, 0.88}}
		default:
			return Distribution{{types.LabelNone, 1}}
		}
	}
}

// Draw picks the outcome whose cumulative probability first exceeds u.
func (d Distribution) Draw(u float64) string {
	acc := 0.0
	for _, o := range d {
		acc += o.P
		if u < acc {
			return o.Label
		}
	}
	return d[len(d)-1].Label
}

func (d Distribution) Probability(label string) float64 {
	p := 0.0
	for _, o := range d {
		if o.Label == label {
			p += o.P
		}
	}
	return p
}

func academicLevel(r types.FeatureRecord) int {
	level := int(r[types.AcademicLevel])
	if level < 0 {
		return 0
	}
	if level > 3 {
		return 3
	}
	return level
}

func positive(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
