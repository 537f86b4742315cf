package circuit

import "math"

// BMI classes.
const (
	BMIUnderweight = "Underweight"
	BMINormal      = "Normal"
	BMIOverweight  = "Overweight"
	BMIObese       = "Obese"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BMI returns weight / height_m^2 rounded to 2 decimals, or 0 when the
// height is not positive.
func BMI(weightKg, heightCm float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return round2(weightKg / (m * m))
}

// ClassifyBMI buckets a BMI value: <18.5, <25, <30, and the rest.
func ClassifyBMI(bmi float64) string {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 25:
		return BMINormal
	case bmi < 30:
		return BMIOverweight
	default:
		return BMIObese
	}
}
