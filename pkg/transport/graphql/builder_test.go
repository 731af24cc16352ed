package graphql

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/unraid-connect/pkg/auth"
	"github.com/saturnines/unraid-connect/pkg/discovery"
	"github.com/saturnines/unraid-connect/pkg/errors"
)

func TestBuilder_Build(t *testing.T) {
	ep, err := discovery.ParseEndpoint("https://abc.hash.myunraid.net:4443/graphql", true)
	require.NoError(t, err)

	b := NewBuilder(ep, Request{
		Query:     "query ($id: PrefixedID!) { vm(id: $id) { name } }",
		Variables: map[string]any{"id": "vm:1"},
	}, map[string]string{"X-Trace": "on"}, auth.NewAPIKeyAuth("k"))

	req, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://abc.hash.myunraid.net:4443/graphql", req.URL.String())
	assert.Equal(t, "abc.hash.myunraid.net:4443", req.Host)
	assert.Equal(t, "https://abc.hash.myunraid.net:4443", req.Header.Get("Origin"))
	assert.Equal(t, "on", req.Header.Get("X-Trace"))
	assert.Equal(t, "k", req.Header.Get("x-api-key"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var body Request
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, map[string]any{"id": "vm:1"}, body.Variables)
}

func TestBuilder_MissingAPIKey(t *testing.T) {
	ep, err := discovery.ParseEndpoint("http://tower/graphql", true)
	require.NoError(t, err)

	_, err = NewBuilder(ep, Request{Query: "query { online }"}, nil, auth.NewAPIKeyAuth("")).Build(context.Background())
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestResponse_HasData(t *testing.T) {
	assert.False(t, Response{}.HasData())
	assert.False(t, Response{Data: json.RawMessage("null")}.HasData())
	assert.True(t, Response{Data: json.RawMessage(`{}`)}.HasData())
}
