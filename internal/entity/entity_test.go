package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmailAddress(t *testing.T) {
	addr := ParseEmailAddress("  Jane.Doe@Bücher.Example ")
	assert.Equal(t, "jane.doe@bücher.example", addr.Raw)
	assert.Equal(t, "jane.doe", addr.Local)
	assert.Equal(t, "bücher.example", addr.Domain)
	assert.Equal(t, "xn--bcher-kva.example", addr.ASCIIDomain)
	assert.Equal(t, addr.Raw, addr.String())

	quoted := ParseEmailAddress(`"a@b"@acme.io`)
	assert.Equal(t, `"a@b"`, quoted.Local)
	assert.Equal(t, "acme.io", quoted.Domain)

	bare := ParseEmailAddress("nobody")
	assert.Equal(t, "nobody", bare.Local)
	assert.Empty(t, bare.Domain)
}

func TestReachabilityJSON(t *testing.T) {
	for r, encoded := range map[Reachability]string{
		Reachable:           "true",
		Unreachable:         "false",
		ReachabilityUnknown: "null",
	} {
		out, err := json.Marshal(r)
		require.NoError(t, err)
		assert.Equal(t, encoded, string(out))

		var decoded Reachability
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, r, decoded)
	}

	var r Reachability
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &r))
	assert.False(t, ReachabilityUnknown.Known())
	assert.True(t, Unreachable.Known())
}

func TestValidationResultJSONFields(t *testing.T) {
	out, err := json.Marshal(ValidationResult{Email: "a@b.io", HasMX: true, CatchAll: true})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, true, fields["has_mx_records"])
	assert.Equal(t, true, fields["is_catch_all"])
	assert.Nil(t, fields["reachable"])
	assert.Contains(t, fields, "verification_details")
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	require.NotNil(t, StringPtr("x"))
	assert.Equal(t, "x", *StringPtr("x"))
}
