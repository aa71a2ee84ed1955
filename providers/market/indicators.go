package market

import (
	"math"

	"github.com/duke-git/lancet/v2/mathutil"
)

// Indicator series have the same length as their input. Positions without
// enough history hold NaN; use Round or Series to make them JSON friendly.

// SMA is the simple moving average over window values.
func SMA(values []float64, window int) []float64 {
	result := nanSeries(len(values))
	if window <= 0 {
		return result
	}
	sum := 0.0
	for index, value := range values {
		sum += value
		if index >= window {
			sum -= values[index-window]
		}
		if index >= window-1 {
			result[index] = sum / float64(window)
		}
	}
	return result
}

// EMA is the exponential moving average seeded with the first value.
func EMA(values []float64, span int) []float64 {
	result := nanSeries(len(values))
	if len(values) == 0 || span <= 0 {
		return result
	}
	alpha := 2 / float64(span+1)
	result[0] = values[0]
	for index := 1; index < len(values); index++ {
		result[index] = alpha*values[index] + (1-alpha)*result[index-1]
	}
	return result
}

// RSI is Wilder's relative strength index.
func RSI(values []float64, window int) []float64 {
	result := nanSeries(len(values))
	if window <= 0 || len(values) <= window {
		return result
	}

	var gain, loss float64
	for index := 1; index <= window; index++ {
		change := values[index] - values[index-1]
		gain += math.Max(change, 0)
		loss += math.Max(-change, 0)
	}
	gain /= float64(window)
	loss /= float64(window)
	result[window] = rsiValue(gain, loss)

	for index := window + 1; index < len(values); index++ {
		change := values[index] - values[index-1]
		gain = (gain*float64(window-1) + math.Max(change, 0)) / float64(window)
		loss = (loss*float64(window-1) + math.Max(-change, 0)) / float64(window)
		result[index] = rsiValue(gain, loss)
	}
	return result
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// MACDHistogram is the MACD line (EMA12 - EMA26) minus its EMA9 signal line.
func MACDHistogram(values []float64) []float64 {
	fast, slow := EMA(values, 12), EMA(values, 26)
	line := make([]float64, len(values))
	for index := range values {
		line[index] = fast[index] - slow[index]
	}
	signal := EMA(line, 9)
	histogram := make([]float64, len(values))
	for index := range values {
		histogram[index] = line[index] - signal[index]
	}
	return histogram
}

// PctChange returns the relative change between consecutive values, in percent.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	changes := make([]float64, 0, len(values)-1)
	for index := 1; index < len(values); index++ {
		if values[index-1] == 0 {
			continue
		}
		changes = append(changes, (values[index]/values[index-1]-1)*100)
	}
	return changes
}

// Volatility is the sample standard deviation of daily percent changes.
func Volatility(values []float64) float64 {
	return stddev(PctChange(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, value := range values {
		mean += value
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, value := range values {
		variance += (value - mean) * (value - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

// Change is the percent change from the first to the last value.
func Change(values []float64) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}
	return (values[len(values)-1]/values[0] - 1) * 100
}

// Last returns the final value of a series, or NaN for an empty one.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Round rounds to places decimals. NaN and infinities become 0.
func Round(value float64, places int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return mathutil.RoundToFloat(value, places)
}

// Series rounds every value and replaces undefined positions with nil, the
// form chart datasets expect.
func Series(values []float64, places int) []any {
	series := make([]any, len(values))
	for index, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		series[index] = mathutil.RoundToFloat(value, places)
	}
	return series
}

func nanSeries(length int) []float64 {
	series := make([]float64, length)
	for index := range series {
		series[index] = math.NaN()
	}
	return series
}
