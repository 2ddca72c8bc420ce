package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthEventToDepthUpdate(t *testing.T) {
	raw := []byte(`{
		"e": "depthUpdate",
		"E": 123456789,
		"s": "BTCUSDT",
		"U": 157,
		"u": 160,
		"b": [["50000.00", "1.5"], ["49999.00", "0"]],
		"a": [["50001.00", "2.0"]]
	}`)

	var event depthEvent
	require.NoError(t, json.Unmarshal(raw, &event))

	update := event.toDepthUpdate()
	assert.Equal(t, "BTCUSDT", update.Symbol)
	assert.Equal(t, uint64(157), update.FirstUpdateID)
	assert.Equal(t, uint64(160), update.FinalUpdateID)
	assert.Equal(t, [][2]string{{"50000.00", "1.5"}, {"49999.00", "0"}}, update.Bids)
	assert.Equal(t, [][2]string{{"50001.00", "2.0"}}, update.Asks)
}

func TestCombinedStreamEnvelopeUnwraps(t *testing.T) {
	raw := []byte(`{
		"stream": "btcusdt@depth@100ms",
		"data": {"e": "depthUpdate", "s": "BTCUSDT", "U": 1, "u": 2, "b": [], "a": []}
	}`)

	var envelope combinedStreamEnvelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "btcusdt@depth@100ms", envelope.Stream)

	var event depthEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &event))
	assert.Equal(t, "BTCUSDT", event.Symbol)
}

func TestPairUpSkipsMalformedRows(t *testing.T) {
	rows := [][]string{{"100.0", "1.0"}, {"missing-quantity"}, {"101.0", "2.0"}}
	paired := pairUp(rows)
	assert.Equal(t, [][2]string{{"100.0", "1.0"}, {"101.0", "2.0"}}, paired)
}
