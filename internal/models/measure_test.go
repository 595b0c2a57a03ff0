package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasureJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Measure{
		"a": Value(6.2),
		"b": Undefined(ReasonNoAcquisitions),
		"c": {},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":6.2,"b":"no_acquisitions","c":"N/A"}`, string(b))

	var back map[string]Measure
	require.NoError(t, json.Unmarshal(b, &back))
	v, ok := back["a"].Get()
	assert.True(t, ok)
	assert.Equal(t, 6.2, v)
	assert.Equal(t, ReasonNoAcquisitions, back["b"].Reason())
}

func TestValueRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		m := Value(f)
		assert.False(t, m.IsDefined())
		assert.Equal(t, ReasonNotAvailable, m.Reason())
	}
}

func TestDiscardRatio(t *testing.T) {
	assert.Zero(t, NormalizationReport{}.DiscardRatio())
	assert.Equal(t, 0.25, NormalizationReport{Total: 8, Discarded: 2}.DiscardRatio())
}

func TestTableLookups(t *testing.T) {
	tb := Table{Headers: []string{"Campaign"}, Columns: []string{ColCampaignID}}
	assert.True(t, tb.Has(ColCampaignID))
	assert.False(t, tb.Has(ColChannel))
	assert.Equal(t, "Campaign", tb.Header(ColCampaignID))
	assert.Equal(t, ColChannel, tb.Header(ColChannel))
}
