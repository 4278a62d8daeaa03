package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/scoring"
	"github.com/abelzeko/kommunekamp/internal/usecases"
)

func sampleComparison() *usecases.Comparison {
	k1 := entities.NewKomm("0301", "Oslo")
	k1.SetAttribute(entities.AttrBreweries, entities.Value(3))
	k1.Winner = true
	k2 := entities.NewKomm("5001", "Trondheim")
	k2.SetAttribute(entities.AttrBreweries, entities.Value(1))

	return &usecases.Comparison{
		Komm1: k1,
		Komm2: k2,
		Result: scoring.Result{
			Score1:    0.45,
			Score2:    0.15,
			Winner:    scoring.WinnerKomm1,
			Breakdown: []scoring.Contribution{{Attribute: entities.AttrBreweries, Komm1: 0.45, Komm2: 0.15}},
		},
	}
}

func TestWriteComparisonJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeComparisonJSON(&buf, sampleComparison()))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "komm1", out["winner"])
	assert.InDelta(t, 0.45, out["score1"], 1e-9)

	komms, ok := out["komms"].([]interface{})
	require.True(t, ok)
	require.Len(t, komms, 2)
	assert.Equal(t, "0301", komms[0].(map[string]interface{})["komm"])
}

func TestWriteComparisonTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeComparisonTable(&buf, sampleComparison()))

	text := buf.String()
	assert.Contains(t, text, "Winner: Oslo (0301)")
	assert.Contains(t, text, "ATTRIBUTE")
	assert.Contains(t, text, "0.4500")
}

func TestIsTerminalWithBuffer(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
