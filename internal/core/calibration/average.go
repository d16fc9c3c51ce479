package calibration

import "time"

// TrailingAverage returns the mean of the last window samples.
// ok is false when there are no samples.
func TrailingAverage(samples []time.Duration, window int) (time.Duration, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	if window <= 0 || window > len(samples) {
		window = len(samples)
	}

	var sum time.Duration
	for _, sample := range samples[len(samples)-window:] {
		sum += sample
	}
	return sum / time.Duration(window), true
}
