package json

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/agora/internal/testing/fake"
	"go.dedis.ch/agora/serde"
)

func TestJSONEngine_GetFormat(t *testing.T) {
	ctx := NewContext()
	require.Equal(t, serde.FormatJSON, ctx.GetFormat())
}

func TestJSONEngine_Marshal(t *testing.T) {
	ctx := NewContext()

	data, err := ctx.Marshal(struct{ Price uint64 }{Price: 12})
	require.NoError(t, err)
	require.Equal(t, `{"Price":12}`, string(data))

	_, err = ctx.Marshal(badObject{})
	require.EqualError(t, err, fake.Err("json: error calling MarshalJSON for type json.badObject"))
}

func TestJSONEngine_Unmarshal(t *testing.T) {
	ctx := NewContext()

	var m interface{}
	err := ctx.Unmarshal([]byte(`{"Owner":"alice"}`), &m)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"Owner": "alice"}, m)

	err = ctx.Unmarshal(nil, &m)
	require.EqualError(t, err, "unexpected end of JSON input")
}

// -----------------------------------------------------------------------------
// Utility functions

type badObject struct{}

func (o badObject) MarshalJSON() ([]byte, error) {
	return nil, fake.GetError()
}
