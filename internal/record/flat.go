package record

import (
	"fmt"
	"math"
	"time"

	"strategy-lab/internal/strategy"
)

// Flat record keys.
const (
	FieldInstrument  = "instrument"
	FieldParams      = "params"
	FieldLastRetrain = "last_retrain_date"
	FieldRetrainDays = "retrain_period_days"
	FieldName        = "name"
	FieldSource      = "source_code"

	fieldMethod      = "method"
	fieldFitness     = "fitness_score"
	fieldProfitPct   = "total_profit_pct"
	fieldRatio       = "sharpe_ratio"
	fieldDrawdownPct = "max_drawdown_pct"
	fieldWinRate     = "win_rate"
	fieldTrades      = "total_trades"
	validationPrefix = "val_"
)

// TimeLayout is the textual form of the retrain timestamp.
const TimeLayout = time.RFC3339Nano

// RecordFormatError reports a missing or mistyped flat-record field.
type RecordFormatError struct {
	Field  string
	Reason string
	Err    error
}

func (e *RecordFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record field %q: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("record field %q: %s", e.Field, e.Reason)
}

func (e *RecordFormatError) Unwrap() error {
	return e.Err
}

// Flat is the persisted shape of a StrategyRecord. Leaves are plain string,
// int and float64 values.
type Flat map[string]any

// Serialize flattens r. Parameters and metrics share the params map; empty
// name and source are omitted.
func Serialize(r StrategyRecord) Flat {
	params := r.Optimized.Params.Map()
	params[fieldFitness] = r.Optimized.Fitness
	putMetrics(params, "", r.Optimized.Train)
	putMetrics(params, validationPrefix, r.Optimized.Validation)
	if r.Optimized.Method != "" {
		params[fieldMethod] = r.Optimized.Method
	}

	out := Flat{
		FieldInstrument:  r.Instrument,
		FieldParams:      params,
		FieldLastRetrain: r.LastRetrain.Format(TimeLayout),
		FieldRetrainDays: r.RetrainDays,
	}
	if r.Name != "" {
		out[FieldName] = r.Name
	}
	if r.Source != "" {
		out[FieldSource] = r.Source
	}
	return out
}

func putMetrics(m map[string]any, prefix string, x Metrics) {
	m[prefix+fieldProfitPct] = x.ProfitPct
	m[prefix+fieldRatio] = x.Ratio
	m[prefix+fieldDrawdownPct] = x.DrawdownPct
	m[prefix+fieldWinRate] = x.WinRate
	m[prefix+fieldTrades] = x.Trades
}

// Deserialize rebuilds a StrategyRecord from its flat form.
func Deserialize(f Flat) (StrategyRecord, error) {
	var r StrategyRecord

	instrument, ok := f[FieldInstrument].(string)
	if !ok || instrument == "" {
		return r, &RecordFormatError{Field: FieldInstrument, Reason: "missing or not a string"}
	}
	r.Instrument = instrument

	rawParams, ok := asMap(f[FieldParams])
	if !ok {
		return r, &RecordFormatError{Field: FieldParams, Reason: "missing or not an object"}
	}
	opt, err := optimizedFromMap(rawParams)
	if err != nil {
		return r, err
	}
	r.Optimized = opt

	ts, ok := f[FieldLastRetrain].(string)
	if !ok {
		return r, &RecordFormatError{Field: FieldLastRetrain, Reason: "missing or not a string"}
	}
	parsed, err := time.Parse(TimeLayout, ts)
	if err != nil {
		return r, &RecordFormatError{Field: FieldLastRetrain, Reason: "bad timestamp", Err: err}
	}
	r.LastRetrain = parsed.UTC()

	r.RetrainDays = DefaultRetrainDays
	if v, present := f[FieldRetrainDays]; present {
		days, err := wholeNumber(FieldRetrainDays, v)
		if err != nil {
			return r, err
		}
		r.RetrainDays = days
	}

	if r.Name, err = optionalString(f, FieldName); err != nil {
		return r, err
	}
	if r.Source, err = optionalString(f, FieldSource); err != nil {
		return r, err
	}
	return r, nil
}

func optimizedFromMap(m map[string]any) (OptimizedRecord, error) {
	var opt OptimizedRecord
	params := make(map[string]any, len(strategy.Keys))
	for _, k := range strategy.Keys {
		v, ok := m[k]
		if !ok {
			return opt, &RecordFormatError{Field: FieldParams + "." + k, Reason: "missing"}
		}
		params[k] = v
	}
	p, err := strategy.ParameterSetFromMap(params)
	if err != nil {
		return opt, &RecordFormatError{Field: FieldParams, Reason: "invalid parameter set", Err: err}
	}
	opt.Params = p

	if opt.Fitness, err = number(m, fieldFitness); err != nil {
		return opt, err
	}
	if opt.Train, err = metricsFromMap(m, ""); err != nil {
		return opt, err
	}
	// Validation metrics are absent in records written before they existed.
	if _, ok := m[validationPrefix+fieldProfitPct]; ok {
		if opt.Validation, err = metricsFromMap(m, validationPrefix); err != nil {
			return opt, err
		}
	}
	if v, ok := m[fieldMethod]; ok {
		s, isString := v.(string)
		if !isString {
			return opt, &RecordFormatError{Field: FieldParams + "." + fieldMethod, Reason: "not a string"}
		}
		opt.Method = s
	}
	return opt, nil
}

func metricsFromMap(m map[string]any, prefix string) (Metrics, error) {
	var x Metrics
	var err error
	if x.ProfitPct, err = number(m, prefix+fieldProfitPct); err != nil {
		return x, err
	}
	if x.Ratio, err = number(m, prefix+fieldRatio); err != nil {
		return x, err
	}
	if x.DrawdownPct, err = number(m, prefix+fieldDrawdownPct); err != nil {
		return x, err
	}
	if x.WinRate, err = number(m, prefix+fieldWinRate); err != nil {
		return x, err
	}
	v, ok := m[prefix+fieldTrades]
	if !ok {
		return x, &RecordFormatError{Field: FieldParams + "." + prefix + fieldTrades, Reason: "missing"}
	}
	x.Trades, err = wholeNumber(FieldParams+"."+prefix+fieldTrades, v)
	return x, err
}

func number(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, &RecordFormatError{Field: FieldParams + "." + key, Reason: "missing"}
	}
	f, ok := strategy.ToFloat(v)
	if !ok {
		return 0, &RecordFormatError{Field: FieldParams + "." + key, Reason: fmt.Sprintf("not a number (%T)", v)}
	}
	return f, nil
}

func wholeNumber(field string, v any) (int, error) {
	f, ok := strategy.ToFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, &RecordFormatError{Field: field, Reason: fmt.Sprintf("not a whole number (%v)", v)}
	}
	return int(f), nil
}

func optionalString(f Flat, key string) (string, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &RecordFormatError{Field: key, Reason: "not a string"}
	}
	return s, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Flat:
		return m, true
	}
	return nil, false
}
