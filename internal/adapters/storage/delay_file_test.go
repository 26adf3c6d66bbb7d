package storage_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/hoopsarb/internal/adapters/storage"
	"github.com/alejandrodnm/hoopsarb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayFile_MissingFileIsEmpty(t *testing.T) {
	f := storage.NewDelayFile(filepath.Join(t.TempDir(), "nope.json"))
	samples, err := f.LoadSamples()
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestDelayFile_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "delay_model.json")
	f := storage.NewDelayFile(path)
	in := []domain.DelaySample{
		{LagSeconds: 4.5, PointGap: 2, Source: "bet"},
		{LagSeconds: 6, PointGap: 3, Source: "bet"},
	}

	require.NoError(t, f.SaveSamples(in))

	out, err := f.LoadSamples()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, 2, doc["count"])
	first := doc["samples"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 4.5, first["lag_seconds"])
	assert.EqualValues(t, 2, first["point_gap"])

	// sin temporales huérfanos
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDelayFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delay_model.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := storage.NewDelayFile(path).LoadSamples()
	assert.Error(t, err)
}
