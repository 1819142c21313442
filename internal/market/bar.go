package market

import "time"

// Bar is one OHLCV observation over a fixed interval.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Closes extracts the close column.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent bar, or false when bars is empty.
func Last(bars []Bar) (Bar, bool) {
	if len(bars) == 0 {
		return Bar{}, false
	}
	return bars[len(bars)-1], true
}

// After returns the bars strictly newer than t.
func After(bars []Bar, t time.Time) []Bar {
	for i, b := range bars {
		if b.Time.After(t) {
			return bars[i:]
		}
	}
	return nil
}
