package optimizer

import "strategy-lab/internal/market"

// DefaultTrainRatio is the share of bars used for training.
const DefaultTrainRatio = 0.8

// Split partitions bars chronologically into training and validation sets.
func Split(bars []market.Bar, ratio float64) (train, validation []market.Bar) {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultTrainRatio
	}
	n := int(float64(len(bars)) * ratio)
	return bars[:n], bars[n:]
}
