package aggregate

import (
	"math"
	"time"

	"aadhaar/internal/core"
)

const (
	// DefaultHorizon is the number of months projected by Forecast.
	DefaultHorizon = 3

	minForecastPoints = 3
	movingWindow      = 3
)

// Forecast projects the monthly series forward. Each projected month carries
// an ordinary least squares estimate over the point index (clamped at zero)
// and the mean of the last three observed months.
//
// Series shorter than three points produce no forecast.
func Forecast(series []core.MonthlyPoint, horizon int) []core.ForecastPoint {
	n := len(series)
	if n < minForecastPoints || horizon <= 0 {
		return []core.ForecastPoint{}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range series {
		x, y := float64(i), float64(p.TotalEnrol)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	var slope float64
	if den := fn*sumXX - sumX*sumX; den != 0 {
		slope = (fn*sumXY - sumX*sumY) / den
	}
	intercept := (sumY - slope*sumX) / fn

	var window float64
	for _, p := range series[n-movingWindow:] {
		window += float64(p.TotalEnrol)
	}
	movingAvg := window / movingWindow

	last, lastOK := parseMonth(series[n-1].Month)

	points := make([]core.ForecastPoint, 0, horizon)
	for h := 1; h <= horizon; h++ {
		x := float64(n + h - 1)
		p := core.ForecastPoint{
			Horizon:          h,
			LinearRegression: math.Max(0, slope*x+intercept),
			MovingAverage:    movingAvg,
		}
		if lastOK {
			p.Month = last.AddMonths(h).String()
		}
		points = append(points, p)
	}
	return points
}

func parseMonth(label string) (core.Month, bool) {
	t, err := time.Parse("2006-01", label)
	if err != nil {
		return core.Month{}, false
	}
	return core.Month{Year: t.Year(), Month: t.Month()}, true
}
