package analyzer

import (
	"errors"
	"math"
	"sort"
	"time"
)

// ErrInsufficientData indicates that not enough points were provided to
// compute a return (need at least 2).
var ErrInsufficientData = errors.New("insufficient data points to calculate volatility")

// SharePricePoint is the ledger's share price observed at one keeper cycle.
type SharePricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// sortedValid returns the points with a positive price in chronological order.
func sortedValid(points []SharePricePoint) []SharePricePoint {
	valid := make([]SharePricePoint, 0, len(points))
	for _, p := range points {
		if p.Price > 0 && !math.IsNaN(p.Price) && !math.IsInf(p.Price, 0) {
			valid = append(valid, p)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})
	return valid
}

// CalculateVolatility returns the annualized standard deviation of log
// returns between consecutive share price observations. The
// annualizationFactor is the number of observation periods per year
// (e.g. 8760 for hourly cycles).
func CalculateVolatility(points []SharePricePoint, annualizationFactor float64) (float64, error) {
	valid := sortedValid(points)
	if len(valid) < 2 {
		return 0, ErrInsufficientData
	}

	logReturns := make([]float64, 0, len(valid)-1)
	for i := 1; i < len(valid); i++ {
		logReturns = append(logReturns, math.Log(valid[i].Price/valid[i-1].Price))
	}

	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(len(logReturns))

	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += (r - mean) * (r - mean)
	}
	// Population variance.
	stdDev := math.Sqrt(sumSqDiff / float64(len(logReturns)))

	return stdDev * math.Sqrt(annualizationFactor), nil
}

// AnnualizedReturn extrapolates the share price change between the first and
// last observation to a yearly rate.
func AnnualizedReturn(points []SharePricePoint) (float64, error) {
	valid := sortedValid(points)
	if len(valid) < 2 {
		return 0, ErrInsufficientData
	}
	first, last := valid[0], valid[len(valid)-1]
	elapsed := last.Timestamp.Sub(first.Timestamp)
	if elapsed <= 0 {
		return 0, ErrInsufficientData
	}
	growth := last.Price / first.Price
	years := elapsed.Hours() / (365 * 24)
	return math.Pow(growth, 1/years) - 1, nil
}
