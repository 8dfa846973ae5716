package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSha256Factory_New(t *testing.T) {
	factory := NewSha256Factory()

	h := factory.New()
	require.NotNil(t, h)

	h.Write([]byte("listing"))
	require.Len(t, h.Sum(nil), 32)
}
