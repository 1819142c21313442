package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"strategy-lab/internal/market"
)

var csvHeader = []string{"time", "open", "high", "low", "close", "volume"}

// CSVProvider reads bars from <Dir>/<SYMBOL>_<interval>.csv files.
type CSVProvider struct {
	Dir string
}

// NewCSVProvider reads files from dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

// Path returns the file that backs req.
func (p *CSVProvider) Path(req Request) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%s_%s.csv", strings.ToUpper(req.Symbol), req.Interval))
}

// Bars loads and filters the file for req.
func (p *CSVProvider) Bars(ctx context.Context, req Request) ([]market.Bar, error) {
	f, err := os.Open(p.Path(req))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoData, p.Path(req))
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path(req), err)
	}
	bars = normalize(bars, req)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, p.Path(req))
	}
	return bars, nil
}

// ReadCSV parses time,open,high,low,close,volume rows. Time is RFC3339 or
// unix milliseconds.
func ReadCSV(r io.Reader) ([]market.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range csvHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return nil, fmt.Errorf("unexpected header %v, want %v", header, csvHeader)
		}
	}

	var bars []market.Bar
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		b, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
}

// WriteCSV writes bars in the format ReadCSV accepts.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseRow(row []string) (market.Bar, error) {
	var b market.Bar
	ts, err := parseTime(row[0])
	if err != nil {
		return b, err
	}
	b.Time = ts

	prices := []*float64{&b.Open, &b.High, &b.Low, &b.Close}
	for i, dst := range prices {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return b, fmt.Errorf("%s: %w", csvHeader[i+1], err)
		}
		*dst = v
	}

	vol, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
	if err != nil {
		return b, fmt.Errorf("volume: %w", err)
	}
	b.Volume = int64(vol)
	return b, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: %w", s, err)
	}
	return t.UTC(), nil
}
