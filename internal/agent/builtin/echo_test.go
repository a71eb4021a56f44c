package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoAgentValidatePayload(t *testing.T) {
	a := NewEchoAgent()

	assert.NoError(t, a.ValidatePayload(json.RawMessage(`{"message":"hi"}`)))
	assert.Error(t, a.ValidatePayload(json.RawMessage(`{}`)))
	assert.Error(t, a.ValidatePayload(json.RawMessage(`not json`)))
}

func TestEchoAgentExecute(t *testing.T) {
	a := NewEchoAgent()

	res, err := a.Execute(context.Background(), json.RawMessage(`{"message":"round trip"}`))

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "round trip", res.Output)
}
