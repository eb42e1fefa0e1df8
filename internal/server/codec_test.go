package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	UserID string    `json:"userId"`
	Limit  int       `json:"limit,omitempty"`
	At     time.Time `json:"at"`
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b, err := c.Marshal(&sample{UserID: "u1", At: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u1","at":"2026-01-02T03:04:05Z"}`, string(b))

	var out sample
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, "u1", out.UserID)
	assert.True(t, out.At.Equal(at))

	// an empty frame decodes to the zero request
	var empty sample
	require.NoError(t, c.Unmarshal(nil, &empty))
	assert.Empty(t, empty.UserID)

	assert.Error(t, c.Unmarshal([]byte("{"), &out))
}
