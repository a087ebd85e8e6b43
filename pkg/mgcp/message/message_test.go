package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerb(t *testing.T) {
	verb, err := ParseVerb("crcx")
	require.NoError(t, err)
	assert.Equal(t, VerbCreateConnection, verb)

	verb, err = ParseVerb(" RQNT ")
	require.NoError(t, err)
	assert.Equal(t, VerbRequestNotification, verb)

	_, err = ParseVerb("XXXX")
	require.Error(t, err, "неизвестный verb отклоняется до построения запроса")
}

func TestParseEndpointID(t *testing.T) {
	id, err := ParseEndpointID("aaln/1@mgw.local")
	require.NoError(t, err)
	assert.Equal(t, "aaln/1", id.Local)
	assert.Equal(t, "mgw.local", id.Domain)
	assert.False(t, id.IsWildcardAll())
	assert.False(t, id.IsWildcardAny())

	id, err = ParseEndpointID("*@mgw.local")
	require.NoError(t, err)
	assert.True(t, id.IsWildcardAll())

	id, err = ParseEndpointID("$@mgw.local")
	require.NoError(t, err)
	assert.True(t, id.IsWildcardAny())

	for _, bad := range []string{"", "no-domain", "@mgw.local", "aaln/1@"} {
		_, err := ParseEndpointID(bad)
		assert.Error(t, err, bad)
	}
}

func TestParametersHelpers(t *testing.T) {
	p := Parameters{ParameterCallID: "c1"}

	v, ok := p.Get(ParameterCallID)
	assert.True(t, ok)
	assert.Equal(t, "c1", v)

	_, ok = p.Get(ParameterConnectionID)
	assert.False(t, ok)
	assert.Equal(t, "def", p.GetOr(ParameterConnectionID, "def"))

	clone := p.Clone()
	clone[ParameterCallID] = "c2"
	assert.Equal(t, "c1", p[ParameterCallID])

	var nilParams Parameters
	_, ok = nilParams.Get(ParameterCallID)
	assert.False(t, ok)
	assert.Nil(t, nilParams.Clone())
}

func TestResponseCodeClasses(t *testing.T) {
	assert.True(t, IsProvisional(100))
	assert.False(t, IsProvisional(200))
	assert.True(t, IsSuccessful(250))
	assert.False(t, IsSuccessful(406))
	assert.True(t, IsFinal(200))
	assert.True(t, IsFinal(510))
	assert.False(t, IsFinal(100))
}
