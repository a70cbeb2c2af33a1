package series

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angas/dkspot/hours"
	"github.com/angas/dkspot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLayout(t *testing.T) {
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, hours.Copenhagen())
	prices := []types.EnergyPrice{
		{Time: start, Price: 95.12},
		{Time: start.Add(time.Hour), Price: -1.5},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, prices))

	expected := ",Time,Price\n" +
		"0,2025-01-15 00:00:00+01:00,95.12\n" +
		"1,2025-01-15 01:00:00+01:00,-1.5\n"
	assert.Equal(t, expected, buf.String())
}

func TestFileRoundTripKeepsInstants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outfile_w.csv")
	start := time.Date(2025, time.October, 26, 0, 0, 0, 0, time.UTC)
	prices := []types.EnergyPrice{
		{Time: hours.LocationCopenhagen(start), Price: 10},
		{Time: hours.LocationCopenhagen(start.Add(time.Hour)), Price: 20},
		{Time: hours.LocationCopenhagen(start.Add(2 * time.Hour)), Price: 30},
	}

	require.NoError(t, WriteFile(path, prices))
	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, len(prices))
	for i := range prices {
		assert.True(t, prices[i].Time.Equal(got[i].Time), "row %d", i)
		assert.Equal(t, prices[i].Price, got[i].Price)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestReadMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"wrong header": "a,b,c\n",
		"bad time":     ",Time,Price\n0,yesterday,1\n",
		"bad price":    ",Time,Price\n0,2025-01-15 00:00:00+01:00,abc\n",
		"short row":    ",Time,Price\n0,2025-01-15 00:00:00+01:00\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
