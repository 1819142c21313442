package record

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// MarshalJSON encodes the flat form of r.
func (r StrategyRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(Serialize(r))
}

// UnmarshalJSON decodes a flat record.
func (r *StrategyRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f Flat
	if err := dec.Decode(&f); err != nil {
		return &RecordFormatError{Field: "", Reason: "malformed json", Err: err}
	}
	out, err := Deserialize(f)
	if err != nil {
		return err
	}
	*r = out
	return nil
}

// EncodeJSON writes r as indented JSON.
func EncodeJSON(r StrategyRecord) ([]byte, error) {
	return json.MarshalIndent(Serialize(r), "", "  ")
}

// DecodeJSON parses a JSON flat record.
func DecodeJSON(data []byte) (StrategyRecord, error) {
	var r StrategyRecord
	err := r.UnmarshalJSON(data)
	return r, err
}

// EncodeYAML writes r as YAML.
func EncodeYAML(r StrategyRecord) ([]byte, error) {
	return yaml.Marshal(map[string]any(Serialize(r)))
}

// DecodeYAML parses a YAML flat record.
func DecodeYAML(data []byte) (StrategyRecord, error) {
	var f map[string]any
	if err := yaml.Unmarshal(data, &f); err != nil {
		return StrategyRecord{}, &RecordFormatError{Field: "", Reason: "malformed yaml", Err: err}
	}
	if f == nil {
		return StrategyRecord{}, &RecordFormatError{Field: FieldInstrument, Reason: "empty document"}
	}
	return Deserialize(f)
}
