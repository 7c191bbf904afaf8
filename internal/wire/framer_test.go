package wire

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramer_WholeValueInOneFeed(t *testing.T) {
	var f Framer
	f.Feed([]byte(`{"id":"1","call":{"method":"schema_name"}}`))

	var req Request
	ok, err := TryParse(&f, &req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, 0, f.Len())
}

func TestFramer_SplitAcrossFeeds(t *testing.T) {
	var f Framer
	whole := []byte(`{"id":"1","call":{"method":"schema_name"}}`)

	var req Request
	for i := 0; i < len(whole); i++ {
		f.Feed(whole[i : i+1])
		ok, err := TryParse(&f, &req)
		require.NoError(t, err)
		if i < len(whole)-1 {
			require.False(t, ok, "should not parse before the value is complete")
		} else {
			require.True(t, ok)
		}
	}
	assert.Equal(t, "1", req.ID)
}

func TestFramer_MalformedResetsBuffer(t *testing.T) {
	var f Framer
	f.Feed([]byte(`{"id": }garbage`))

	var req Request
	ok, err := TryParse(&f, &req)
	require.Error(t, err)
	require.False(t, ok)
	assert.Equal(t, 0, f.Len())

	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, ErrJSON, protoErr.ID)
}

func TestFramer_TwoValuesBackToBack(t *testing.T) {
	var f Framer
	f.Feed([]byte(`{"id":"1","call":{"method":"schema_name"}}{"id":"2","call":{"method":"stop_client"}}`))

	var req Request
	ok, err := TryParse(&f, &req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", req.ID)

	ok, err = TryParse(&f, &req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", req.ID)
}

func TestFramer_EmptyBufferYieldsNoResult(t *testing.T) {
	var f Framer
	var req Request
	ok, err := TryParse(&f, &req)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestFramer_IdempotentSplit is a property test: splitting a valid request
// at any byte boundary and feeding the pieces one at a time must yield
// exactly the same decoded Request as feeding it whole, grounded on
// original_source/src/json_source.rs's incremental read_data loop.
func TestFramer_IdempotentSplit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("splitting the feed never changes the parsed result", prop.ForAll(
		func(id string, splitPoint int) bool {
			req := Request{ID: id, Call: Call{Method: CallSchemaName}}
			data, err := json.Marshal(req)
			if err != nil {
				return false
			}
			if len(data) < 2 {
				return true
			}
			splitPoint = splitPoint % (len(data) - 1)
			if splitPoint < 0 {
				splitPoint = -splitPoint
			}
			splitPoint++

			var f Framer
			f.Feed(data[:splitPoint])

			var partial Request
			ok, err := TryParse(&f, &partial)
			if err != nil {
				return false
			}
			if ok {
				return false
			}

			f.Feed(data[splitPoint:])
			var whole Request
			ok, err = TryParse(&f, &whole)
			if err != nil || !ok {
				return false
			}
			return whole.ID == req.ID && whole.Call.Method == req.Call.Method
		},
		gen.AlphaString(),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
