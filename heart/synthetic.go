package heart

import "github.com/brianvoe/gofakeit/v7"

// DefaultCohortSize matches the row count of the reference dataset.
const DefaultCohortSize = 918

// SyntheticCohort generates n demo records with uniformly random labels.
// The same seed always yields the same cohort.
func SyntheticCohort(n int, seed uint64) ([]Record, []int) {
	f := gofakeit.New(seed)

	records := make([]Record, n)
	labels := make([]int, n)
	for i := range records {
		records[i] = Record{
			Age:            f.Number(28, 77),
			Sex:            f.RandomString([]string{"F", "M"}),
			ChestPainType:  f.RandomString([]string{"TA", "ATA", "NAP", "ASY"}),
			RestingBP:      f.Number(90, 199),
			Cholesterol:    f.Number(0, 399),
			FastingBS:      f.RandomString([]string{"No", "Yes"}),
			RestingECG:     f.RandomString([]string{"Normal", "ST", "LVH"}),
			MaxHR:          f.Number(60, 201),
			ExerciseAngina: f.RandomString([]string{"No", "Yes"}),
			Oldpeak:        f.Float64Range(-2.6, 6.2),
			STSlope:        f.RandomString([]string{"Up", "Flat", "Down"}),
		}
		labels[i] = f.Number(0, 1)
	}
	return records, labels
}
