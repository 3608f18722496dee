package utils

import (
	"math"
	"time"
)

type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

func CalculateMean[T Numeric](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// CalculateVarianceWithMean returns the population variance and the mean.
func CalculateVarianceWithMean[T Numeric](values []T) (variance float64, mean float64) {
	mean = CalculateMean(values)
	if len(values) < 2 {
		return 0, mean
	}

	for _, v := range values {
		diff := float64(v) - mean
		variance += diff * diff
	}
	return variance / float64(len(values)), mean
}

func LinearRegression(x, y []float64) (slope, correlation float64) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, 0
	}

	n := float64(len(x))
	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
		sumYY += y[i] * y[i]
	}

	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return 0, 0
	}

	numerator := n*sumXY - sumX*sumY
	slope = numerator / denominator
	if d := math.Sqrt(denominator * (n*sumYY - sumY*sumY)); d != 0 {
		correlation = numerator / d
	}
	return slope, correlation
}

// TimePoint is one sampled value.
type TimePoint struct {
	Time  time.Time
	Value float64
}

// Summary describes a run of samples.
type Summary struct {
	Count       int
	Min, Max    float64
	Mean        float64
	StdDev      float64
	PerSecond   float64 // least-squares trend
	Correlation float64
	Span        time.Duration
}

func Summarize(points []TimePoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	s := Summary{
		Count: len(points),
		Min:   points[0].Value,
		Max:   points[0].Value,
		Span:  points[len(points)-1].Time.Sub(points[0].Time),
	}

	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.Time.Sub(points[0].Time).Seconds()
		y[i] = p.Value
		s.Min = min(s.Min, p.Value)
		s.Max = max(s.Max, p.Value)
	}

	variance, mean := CalculateVarianceWithMean(y)
	s.Mean = mean
	s.StdDev = math.Sqrt(variance)
	s.PerSecond, s.Correlation = LinearRegression(x, y)
	return s
}
