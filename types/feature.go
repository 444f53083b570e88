package types

import (
	"strings"
)

// SchemaVersion is bumped whenever the canonical feature list or its order changes.
const SchemaVersion = 1

const (
	Gender           = "gender"
	Age              = "age"
	AcademicLevel    = "academic_level"
	SleepDuration    = "sleep_duration"
	SleepQuality     = "sleep_quality"
	PhysicalActivity = "physical_activity"
	StressLevel      = "stress_level"
	BMICategory      = "bmi_category"
	HeartRate        = "heart_rate"
	DailySteps       = "daily_steps"
	SystolicBP       = "systolic_bp"
	DiastolicBP      = "diastolic_bp"

	LabelColumn = "sleep_disorder"
)

const (
	LabelNone       = "None"
	LabelInsomnia   = "Insomnia"
	LabelSleepApnea = "Sleep Apnea"
)

type Feature struct {
	Name        string
	Aliases     []string
	Categorical bool
}

var canonicalFeatures = []Feature{
	{Name: Gender, Aliases: []string{"Gender"}, Categorical: true},
	{Name: Age, Aliases: []string{"Age"}},
	{Name: AcademicLevel, Aliases: []string{"Academic Level"}, Categorical: true},
	{Name: SleepDuration, Aliases: []string{"Sleep Duration"}},
	{Name: SleepQuality, Aliases: []string{"Quality of Sleep"}},
	{Name: PhysicalActivity, Aliases: []string{"Physical Activity Level"}},
	{Name: StressLevel, Aliases: []string{"Stress Level"}},
	{Name: BMICategory, Aliases: []string{"BMI Category"}, Categorical: true},
	{Name: HeartRate, Aliases: []string{"Heart Rate (bpm)", "Heart Rate"}},
	{Name: DailySteps, Aliases: []string{"Daily Steps"}},
	{Name: SystolicBP, Aliases: []string{"Systolic BP"}},
	{Name: DiastolicBP, Aliases: []string{"Diastolic BP"}},
}

var labelAliases = []string{LabelColumn, "Sleep Disorder"}

// CanonicalFeatures returns the declared feature set in canonical order.
func CanonicalFeatures() []Feature {
	out := make([]Feature, len(canonicalFeatures))
	copy(out, canonicalFeatures)
	return out
}

func CanonicalNames() []string {
	names := make([]string, len(canonicalFeatures))
	for i, f := range canonicalFeatures {
		names[i] = f.Name
	}
	return names
}

func LookupFeature(name string) (Feature, bool) {
	for _, f := range canonicalFeatures {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// ResolveColumn maps a tabular column header onto a canonical feature name.
func ResolveColumn(header string) (string, bool) {
	h := normalizeHeader(header)
	for _, f := range canonicalFeatures {
		if normalizeHeader(f.Name) == h {
			return f.Name, true
		}
		for _, alias := range f.Aliases {
			if normalizeHeader(alias) == h {
				return f.Name, true
			}
		}
	}
	return "", false
}

func IsLabelColumn(header string) bool {
	h := normalizeHeader(header)
	for _, alias := range labelAliases {
		if normalizeHeader(alias) == h {
			return true
		}
	}
	return false
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// Schema is the ordered feature list a pipeline is fitted against.
type Schema struct {
	Version  int      `json:"version" msgpack:"version"`
	Features []string `json:"features" msgpack:"features"`
}

// NewSchema intersects the supplied feature names with the canonical set,
// keeping canonical order. Names outside the canonical set are returned as dropped.
func NewSchema(supplied []string) (Schema, []string) {
	set := make(map[string]bool, len(supplied))
	for _, name := range supplied {
		set[name] = true
	}
	schema := Schema{Version: SchemaVersion}
	for _, f := range canonicalFeatures {
		if set[f.Name] {
			schema.Features = append(schema.Features, f.Name)
			delete(set, f.Name)
		}
	}
	var dropped []string
	for _, name := range supplied {
		if set[name] {
			dropped = append(dropped, name)
		}
	}
	return schema, dropped
}

func FullSchema() Schema {
	return Schema{Version: SchemaVersion, Features: CanonicalNames()}
}

func (s Schema) Len() int {
	return len(s.Features)
}

func (s Schema) Index(name string) (int, bool) {
	for i, f := range s.Features {
		if f == name {
			return i, true
		}
	}
	return 0, false
}

func (s Schema) Equal(other Schema) bool {
	if s.Version != other.Version || len(s.Features) != len(other.Features) {
		return false
	}
	for i := range s.Features {
		if s.Features[i] != other.Features[i] {
			return false
		}
	}
	return true
}

// Missing lists canonical features the schema does not carry.
func (s Schema) Missing() []string {
	var out []string
	for _, f := range canonicalFeatures {
		if _, ok := s.Index(f.Name); !ok {
			out = append(out, f.Name)
		}
	}
	return out
}
