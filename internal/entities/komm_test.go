package entities

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKommAttribute(t *testing.T) {
	k := NewKomm("1201", "Bergen")
	k.SetAttribute(AttrBreweries, Value(12))
	k.SetAttribute(AttrRain, Unavailable())

	m, err := k.Attribute(AttrBreweries)
	require.NoError(t, err)
	assert.True(t, m.Available)
	assert.Equal(t, 12.0, m.Value)

	m, err = k.Attribute(AttrRain)
	require.NoError(t, err, "unavailable metrics are present, not missing")
	assert.False(t, m.Available)

	_, err = k.Attribute(AttrFootTrails)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAttribute))
	assert.Contains(t, err.Error(), AttrFootTrails)
}

func TestKommMarshalJSON(t *testing.T) {
	k := NewKomm("0301", "Oslo")
	k.SetAttribute(AttrBreweries, Value(3))
	k.SetAttribute(AttrFootTrails, Unavailable())
	k.SetAttribute(AttrRain, Value(1520))
	k.Winner = true

	data, err := json.Marshal(k)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"komm": "0301",
		"name": "Oslo",
		"kmFootTrails": -1,
		"numBreweries": 3,
		"rain": 1520,
		"winner": true
	}`, string(data))

	// attribute keys are emitted in sorted order so output is stable
	assert.Equal(t,
		`{"komm":"0301","name":"Oslo","kmFootTrails":-1,"numBreweries":3,"rain":1520,"winner":true}`,
		string(data))
}

func TestKommUnmarshalJSON(t *testing.T) {
	var k Komm
	err := json.Unmarshal([]byte(`{"komm": 1201, "name": "Bergen", "numBreweries": 5, "rain": -1, "winner": false}`), &k)
	require.NoError(t, err)

	assert.Equal(t, "1201", k.ID)
	assert.Equal(t, "Bergen", k.Name)
	assert.Equal(t, Value(5), k.Attributes[AttrBreweries])
	assert.Equal(t, Unavailable(), k.Attributes[AttrRain])
	assert.False(t, k.Winner)
}

func TestValidateWeights(t *testing.T) {
	require.NoError(t, ValidateWeights(DefaultWeights()))

	tests := []struct {
		name    string
		weights []AttributeWeight
		errText string
	}{
		{"empty", nil, "at least one"},
		{"no attribute", []AttributeWeight{{Factor: 1}}, "attribute name is required"},
		{"zero factor", []AttributeWeight{{Attribute: AttrRain}}, "must be positive"},
		{"negative factor", []AttributeWeight{{Attribute: AttrRain, Factor: -0.5}}, "must be positive"},
		{"duplicate", []AttributeWeight{{Attribute: AttrRain, Factor: 1}, {Attribute: AttrRain, Factor: 2}}, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.weights)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}
