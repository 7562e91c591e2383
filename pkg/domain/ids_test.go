package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "keymarket/pkg/domain-errors"
)

func TestParseAssetID(t *testing.T) {
	t.Run("valid uuid", func(t *testing.T) {
		original := NewAssetID()
		parsed, err := ParseAssetID(original.String())
		require.NoError(t, err)
		assert.Equal(t, original, parsed)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseAssetID("not-a-uuid")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseAssetID("  ")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects the nil uuid", func(t *testing.T) {
		_, err := ParseAssetID("00000000-0000-0000-0000-000000000000")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func TestIDJSONRoundTrip(t *testing.T) {
	original := NewListingID()
	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+original.String()+`"`, string(raw), "identifiers serialize as uuid strings")

	var decoded ListingID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestParsePrincipal(t *testing.T) {
	p, err := ParsePrincipal(" alice ")
	require.NoError(t, err)
	assert.Equal(t, Principal("alice"), p)

	_, err = ParsePrincipal("   ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
