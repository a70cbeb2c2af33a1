// Package series stores a fetched price series as an intermediate CSV file.
//
// The layout matches what a pandas DataFrame.to_csv call produces, an unnamed
// index column followed by Time and Price, so the files can be inspected with
// the usual tooling.
package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/angas/dkspot/types"
)

const timeLayout = "2006-01-02 15:04:05-07:00"

var header = []string{"", "Time", "Price"}

var ErrMalformed = errors.New("malformed price series")

func Write(w io.Writer, prices []types.EnergyPrice) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, p := range prices {
		record := []string{
			strconv.Itoa(i),
			p.Time.Format(timeLayout),
			strconv.FormatFloat(p.Price, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func Read(r io.Reader) ([]types.EnergyPrice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	if records[0][1] != header[1] || records[0][2] != header[2] {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrMalformed, records[0])
	}

	prices := make([]types.EnergyPrice, 0, len(records)-1)
	for i, rec := range records[1:] {
		t, err := time.Parse(timeLayout, rec[1])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, i, err)
		}
		price, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, i, err)
		}
		prices = append(prices, types.EnergyPrice{Time: t, Price: price})
	}
	return prices, nil
}

// WriteFile replaces path with the series. The file is written next to its
// destination and renamed into place.
func WriteFile(path string, prices []types.EnergyPrice) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if err := Write(f, prices); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func ReadFile(path string) ([]types.EnergyPrice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
