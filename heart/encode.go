package heart

// Encode maps a record onto the model feature vector. Field order follows
// FeatureNames. Unknown category labels encode to 0, so records must pass
// Validate before being encoded.
func Encode(rec Record) []float64 {
	return []float64{
		float64(rec.Age),
		sexCodes[rec.Sex],
		chestPainCodes[rec.ChestPainType],
		float64(rec.RestingBP),
		float64(rec.Cholesterol),
		yesNoCodes[rec.FastingBS],
		restingECGCodes[rec.RestingECG],
		float64(rec.MaxHR),
		yesNoCodes[rec.ExerciseAngina],
		rec.Oldpeak,
		stSlopeCodes[rec.STSlope],
	}
}
