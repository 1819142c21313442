package market

import (
	"math"
	"math/rand"
	"time"
)

// Generator produces synthetic bars for local development and dry runs.
type Generator struct {
	StartPrice float64
	Step       float64 // max absolute close-to-close move
	Drift      float64 // added to every move
	Interval   time.Duration
	Start      time.Time

	rng  *rand.Rand
	last Bar
	n    int
}

// NewGenerator builds a generator with a fixed seed so runs are repeatable.
func NewGenerator(seed int64, startPrice, step float64, interval time.Duration) *Generator {
	if startPrice <= 0 {
		startPrice = 100
	}
	if step <= 0 {
		step = 0.5
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Generator{
		StartPrice: startPrice,
		Step:       step,
		Interval:   interval,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Next returns the following bar of the random walk.
func (g *Generator) Next() Bar {
	open := g.StartPrice
	ts := g.Start
	if g.n > 0 {
		open = g.last.Close
		ts = g.last.Time.Add(g.Interval)
	}
	move := (g.rng.Float64()*2-1)*g.Step + g.Drift
	closePrice := math.Max(open+move, 0.01)
	wick := g.rng.Float64() * g.Step / 2
	b := Bar{
		Time:   ts,
		Open:   open,
		High:   math.Max(open, closePrice) + wick,
		Low:    math.Max(math.Min(open, closePrice)-wick, 0.001),
		Close:  closePrice,
		Volume: int64(100 + g.rng.Intn(900)),
	}
	g.last = b
	g.n++
	return b
}

// Bars returns the next n bars.
func (g *Generator) Bars(n int) []Bar {
	out := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}
