package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verdant/pkg/domain-errors"
)

// TestParseID_Invariants validates the parsing invariant: IDs entering
// domain logic must be valid, non-empty, non-nil UUIDs.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSectionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSessionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		parsed, err := ParseDataPointID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, DataPointID(valid), parsed)
	})
}

// TestID_JSONRoundTrip pins the wire encoding: IDs travel as canonical UUID
// strings, not byte arrays.
func TestID_JSONRoundTrip(t *testing.T) {
	original := NewPeriodID()

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+original.String()+`"`, string(raw))

	var decoded PeriodID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestCapability(t *testing.T) {
	t.Run("parses resource and action halves", func(t *testing.T) {
		c, err := ParseCapability("sections:edit")
		require.NoError(t, err)
		assert.Equal(t, ResourceSections, c.Resource())
		assert.Equal(t, ActionEdit, c.Action())
	})

	t.Run("rejects missing separator", func(t *testing.T) {
		_, err := ParseCapability("sections-edit")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects empty halves", func(t *testing.T) {
		for _, raw := range []string{":edit", "sections:", ":"} {
			_, err := ParseCapability(raw)
			assert.Error(t, err, raw)
		}
	})
}
