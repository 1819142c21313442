package strategy

import (
	"strategy-lab/internal/indicators"
	"strategy-lab/internal/market"
)

// fallbackStopPct is used when the computed stop level is undefined on entry.
const fallbackStopPct = 0.02

// State is the accumulator threaded through the bar walk.
type State struct {
	Long       bool    `json:"long"`
	EntryPrice float64 `json:"entry_price"`
	Stop       float64 `json:"stop"`
}

// Input is everything the machine reads for one bar.
type Input struct {
	Bar            market.Bar
	Momentum       float64
	EntryThreshold float64
	ExitThreshold  float64
	StopLevel      float64
	HighVolatility bool
	StrongBullish  bool
	Snapshot       indicators.Snapshot
}

// InputAt assembles the machine input for bar i.
func InputAt(bars []market.Bar, set indicators.Set, i int) Input {
	return Input{
		Bar:            bars[i],
		Momentum:       set.Momentum[i],
		EntryThreshold: set.EntryThreshold[i],
		ExitThreshold:  set.ExitThreshold[i],
		StopLevel:      set.StopLevel[i],
		HighVolatility: set.HighVolatility[i],
		StrongBullish:  set.StrongBullish[i],
		Snapshot:       set.At(i),
	}
}

// Step advances the machine by one bar. At most one signal is produced.
func Step(s State, in Input) (State, *Signal) {
	if !s.Long {
		return enter(s, in)
	}
	return hold(s, in)
}

func enter(s State, in Input) (State, *Signal) {
	if !indicators.Defined(in.Momentum) || !indicators.Defined(in.EntryThreshold) {
		return s, nil
	}
	if in.Momentum <= 0 || in.Momentum <= in.EntryThreshold {
		return s, nil
	}
	if !in.HighVolatility || !in.StrongBullish {
		return s, nil
	}

	stop := in.StopLevel
	if !indicators.Defined(stop) {
		stop = in.Bar.Close * (1 - fallbackStopPct)
	}
	snap := in.Snapshot
	next := State{Long: true, EntryPrice: in.Bar.Close, Stop: stop}
	return next, &Signal{
		Action:     ActionEnterLong,
		Price:      in.Bar.Close,
		Time:       in.Bar.Time,
		Stop:       stop,
		Indicators: &snap,
	}
}

func hold(s State, in Input) (State, *Signal) {
	if in.Bar.Low <= s.Stop {
		sig := exitSignal(s.Stop, s.EntryPrice, in.Bar.Time, ReasonStopLoss)
		return State{}, &sig
	}

	if indicators.Defined(in.Momentum) && indicators.Defined(in.ExitThreshold) &&
		in.Momentum < 0 && -in.Momentum > in.ExitThreshold {
		sig := exitSignal(in.Bar.Close, s.EntryPrice, in.Bar.Time, ReasonFilter)
		snap := in.Snapshot
		sig.Indicators = &snap
		return State{}, &sig
	}

	if indicators.Defined(in.StopLevel) && in.StopLevel > s.Stop {
		s.Stop = in.StopLevel
	}
	return s, nil
}

// Finish closes a dangling long position at the last bar.
func Finish(s State, last market.Bar) (State, *Signal) {
	if !s.Long {
		return s, nil
	}
	sig := exitSignal(last.Close, s.EntryPrice, last.Time, ReasonEndOfData)
	return State{}, &sig
}

// Walk folds Step over bars[from:] and applies Finish. visit, when non-nil,
// observes the state after every bar.
func Walk(bars []market.Bar, set indicators.Set, from int, visit func(i int, s State)) []Signal {
	if from < 0 {
		from = 0
	}
	if from >= len(bars) || set.Len() != len(bars) {
		return []Signal{}
	}

	signals := make([]Signal, 0, 8)
	state := State{}
	for i := from; i < len(bars); i++ {
		var sig *Signal
		state, sig = Step(state, InputAt(bars, set, i))
		if sig != nil {
			signals = append(signals, *sig)
		}
		if visit != nil {
			visit(i, state)
		}
	}
	if _, sig := Finish(state, bars[len(bars)-1]); sig != nil {
		signals = append(signals, *sig)
	}
	return signals
}
