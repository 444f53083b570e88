// Package advice scores sleep risk with a fixed heuristic and derives lifestyle
// recommendations. It is independent of the trained classifier.
package advice

import (
	"sleepdx.com/sdp/types"
	"fmt"
	"math"
)

const Kind = "heuristic"

type Priority string

const (
	PriorityUrgent   Priority = "urgent"
	PriorityHigh     Priority = "high"
	PriorityModerate Priority = "moderate"
)

type Recommendation struct {
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// Assessment is the heuristic result for one record.
type Assessment struct {
	Kind            string           `json:"kind"`
	Score           float64          `json:"score"`
	Tier            string           `json:"tier"`
	Thresholds      [3]float64       `json:"thresholds"`
	AcademicStress  bool             `json:"academic_stress"`
	Recommendations []Recommendation `json:"recommendations"`
	Tips            []string         `json:"tips"`
}

var (
	tiers       = [4]string{"Low", "Moderate", "High", "Very High"}
	multipliers = [4]float64{0.7, 1.0, 1.4, 1.9}
	levelRisk   = [4]string{"Minimal", "Low", "Moderate", "High"}
)

var tips = []string{
	"Eat a balanced diet rich in fruits and vegetables",
	"Drink 8-10 glasses of water daily",
	"Spend time in nature for mental wellness",
	"Read before bed instead of using screens",
	"Listen to calming music or sounds before sleep",
}

// Score is the raw heuristic risk for rec.
func Score(rec types.FeatureRecord) float64 {
	level := level(rec)
	base := rec[types.StressLevel]*10 +
		(11-rec[types.SleepQuality])*8 +
		math.Max(0, 60-rec[types.PhysicalActivity])*5 +
		float64(level+1)*5 +
		math.Abs(8-rec[types.SleepDuration])*4
	return base * multipliers[level]
}

// Thresholds are the Moderate, High and Very High cut offs for an academic level.
func Thresholds(academicLevel int) [3]float64 {
	shift := 5 * float64(academicLevel)
	return [3]float64{40 - shift, 70 - shift, 100 - shift}
}

func Assess(rec types.FeatureRecord) Assessment {
	level := level(rec)
	score := Score(rec)
	th := Thresholds(level)
	tier := tiers[0]
	for i := len(th) - 1; i >= 0; i-- {
		if score >= th[i] {
			tier = tiers[i+1]
			break
		}
	}
	recs, academic := recommend(rec, level)
	return Assessment{
		Kind:            Kind,
		Score:           score,
		Tier:            tier,
		Thresholds:      th,
		AcademicStress:  academic,
		Recommendations: recs,
		Tips:            append([]string(nil), tips...),
	}
}

// recommend returns recommendations ordered urgent, high, moderate.
func recommend(rec types.FeatureRecord, level int) ([]Recommendation, bool) {
	stress := rec[types.StressLevel]
	quality := rec[types.SleepQuality]
	activity := rec[types.PhysicalActivity]
	var urgent, high, moderate []Recommendation
	academic := false

	if stress >= 8 {
		urgent = append(urgent, Recommendation{PriorityUrgent, "Critical Stress Level",
			"Your stress level is extremely high and requires immediate attention.",
			[]string{"Seek professional counseling", "Practice daily meditation (10+ minutes)", "Consider temporary workload reduction"}})
	}
	if quality <= 3 {
		urgent = append(urgent, Recommendation{PriorityUrgent, "Severe Sleep Quality Issues",
			"Your sleep quality is critically poor and affecting your health.",
			[]string{"Create a strict sleep routine", "Eliminate screens 2 hours before bed", "Consult a sleep specialist"}})
	}

	if stress >= 6 {
		high = append(high, Recommendation{PriorityHigh, "Elevated Stress Management",
			"Your stress levels are high and need active management.",
			[]string{"Practice deep breathing exercises", "Take regular 15-minute breaks", "Try progressive muscle relaxation"}})
		if level >= 2 {
			academic = true
		}
	}
	if quality <= 6 {
		high = append(high, Recommendation{PriorityHigh, "Sleep Quality Improvement",
			"Your sleep quality needs significant improvement for better health.",
			[]string{"Maintain consistent sleep schedule", "Create comfortable sleep environment", "Avoid caffeine after 2 PM"}})
	}
	if activity < 30 {
		high = append(high, Recommendation{PriorityHigh, "Increase Physical Activity",
			"Your activity level is too low and affecting your sleep quality.",
			[]string{"Start with 20-minute daily walks", "Take stairs instead of elevator", "Do simple stretching exercises"}})
	}
	if rec[types.SleepDuration] < 6 {
		high = append(high, Recommendation{PriorityHigh, "Insufficient Sleep Duration",
			"You're not getting enough sleep for optimal health and recovery.",
			[]string{"Aim for 7-9 hours of sleep", "Set a fixed bedtime", "Avoid late-night activities"}})
	}

	if stress >= 4 && stress < 6 {
		moderate = append(moderate, Recommendation{PriorityModerate, "Stress Management",
			"Maintain good stress levels with healthy coping strategies.",
			[]string{"Continue current stress management", "Try yoga or meditation", "Maintain work-life balance"}})
	}
	if quality == 7 {
		moderate = append(moderate, Recommendation{PriorityModerate, "Sleep Quality Enhancement",
			"Your sleep is good, but can be optimized further.",
			[]string{"Fine-tune your sleep routine", "Consider blackout curtains", "Keep room temperature cool (65-68°F)"}})
	}
	if activity >= 30 && activity < 60 {
		moderate = append(moderate, Recommendation{PriorityModerate, "Activity Level Optimization",
			"Good activity level! Consider increasing for maximum benefits.",
			[]string{"Aim for 45-60 minutes daily", "Add strength training twice a week", "Try different activities for variety"}})
	}

	if level >= 2 && stress >= 5 {
		academic = true
		high = append(high, Recommendation{PriorityHigh, fmt.Sprintf("Academic Stress - Level %d", level+1),
			fmt.Sprintf("Advanced academic level creating %s sleep disorder risk.", levelRisk[level]),
			[]string{"Schedule regular study breaks", "Use time-blocking techniques", "Seek academic support when needed"}})
	}

	if rec[types.SystolicBP] > 130 || rec[types.DiastolicBP] > 80 {
		moderate = append(moderate, Recommendation{PriorityModerate, "Blood Pressure Management",
			"Your blood pressure is elevated and needs attention.",
			[]string{"Reduce sodium intake", "Increase potassium-rich foods", "Monitor BP regularly"}})
	}
	if rec[types.BMICategory] >= 1 {
		moderate = append(moderate, Recommendation{PriorityModerate, "Weight Management",
			"Consider healthy weight management for better sleep.",
			[]string{"Focus on balanced nutrition", "Increase physical activity", "Consider portion control"}})
	}
	if rec[types.HeartRate] > 85 {
		moderate = append(moderate, Recommendation{PriorityModerate, "Heart Health",
			"Your resting heart rate could benefit from improvement.",
			[]string{"Increase cardiovascular exercise", "Practice stress reduction", "Ensure adequate hydration"}})
	}

	out := append(urgent, high...)
	return append(out, moderate...), academic
}

func level(rec types.FeatureRecord) int {
	l := int(rec[types.AcademicLevel])
	if l < 0 {
		return 0
	}
	if l > 3 {
		return 3
	}
	return l
}
