// ABOUTME: Field names for the per-date health record and their value kinds.
// ABOUTME: Defines the known numeric, text, and list fields with display units.
package models

// FieldName names one field of a HealthRecord.
type FieldName string

const (
	// Activity
	FieldSteps          FieldName = "steps"
	FieldDistance       FieldName = "distance"
	FieldActiveCalories FieldName = "active_calories"
	FieldActiveMinutes  FieldName = "active_minutes"

	// Sleep
	FieldSleepDuration FieldName = "sleep_duration"
	FieldDeepSleep     FieldName = "deep_sleep"
	FieldSleepStages   FieldName = "sleep_stages"

	// Heart
	FieldRestingHeartRate FieldName = "resting_heart_rate"
	FieldHeartRate        FieldName = "heart_rate"
	FieldHRV              FieldName = "hrv"

	// Body
	FieldWeight     FieldName = "weight"
	FieldBodyFat    FieldName = "body_fat"
	FieldBMI        FieldName = "bmi"
	FieldMuscleMass FieldName = "muscle_mass"
	FieldBodyWater  FieldName = "body_water"

	// Free-form
	FieldNotes    FieldName = "notes"
	FieldWorkouts FieldName = "workouts"
)

// FieldKind is the value shape a field holds.
type FieldKind int

const (
	KindNumeric FieldKind = iota
	KindText
	KindList
)

// String returns the kind name.
func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindList:
		return "list"
	default:
		return "numeric"
	}
}

// FieldSpec describes a known field.
type FieldSpec struct {
	Name FieldName
	Kind FieldKind
	Unit string
}

// KnownFields maps each known field to its spec.
var KnownFields = map[FieldName]FieldSpec{
	FieldSteps:            {FieldSteps, KindNumeric, "steps"},
	FieldDistance:         {FieldDistance, KindNumeric, "km"},
	FieldActiveCalories:   {FieldActiveCalories, KindNumeric, "kcal"},
	FieldActiveMinutes:    {FieldActiveMinutes, KindNumeric, "min"},
	FieldSleepDuration:    {FieldSleepDuration, KindNumeric, "min"},
	FieldDeepSleep:        {FieldDeepSleep, KindNumeric, "min"},
	FieldSleepStages:      {FieldSleepStages, KindList, ""},
	FieldRestingHeartRate: {FieldRestingHeartRate, KindNumeric, "bpm"},
	FieldHeartRate:        {FieldHeartRate, KindNumeric, "bpm"},
	FieldHRV:              {FieldHRV, KindNumeric, "ms"},
	FieldWeight:           {FieldWeight, KindNumeric, "kg"},
	FieldBodyFat:          {FieldBodyFat, KindNumeric, "%"},
	FieldBMI:              {FieldBMI, KindNumeric, ""},
	FieldMuscleMass:       {FieldMuscleMass, KindNumeric, "kg"},
	FieldBodyWater:        {FieldBodyWater, KindNumeric, "%"},
	FieldNotes:            {FieldNotes, KindText, ""},
	FieldWorkouts:         {FieldWorkouts, KindList, ""},
}

// IsValidField checks if a string names a known field.
func IsValidField(s string) bool {
	_, ok := KnownFields[FieldName(s)]
	return ok
}

// Kind returns the value kind of the field. Unknown fields are numeric.
func (f FieldName) Kind() FieldKind {
	if spec, ok := KnownFields[f]; ok {
		return spec.Kind
	}
	return KindNumeric
}

// Unit returns the display unit of the field, or "" if none.
func (f FieldName) Unit() string {
	return KnownFields[f].Unit
}
