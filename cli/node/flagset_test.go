package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlagSet_String(t *testing.T) {
	fset := make(FlagSet)
	fset["account"] = "seller-1"
	fset["threshold"] = 20

	require.Equal(t, "seller-1", fset.String("account"))
	require.Equal(t, "", fset.String("threshold"))
}

func TestFlagSet_StringSlice(t *testing.T) {
	fset := make(FlagSet)
	fset["member"] = []interface{}{"gk-1", "gk-2"}
	fset["threshold"] = 123

	require.Equal(t, []string{"gk-1", "gk-2"}, fset.StringSlice("member"))
	require.Nil(t, fset.StringSlice("threshold"))
}

func TestFlagSet_Duration(t *testing.T) {
	// JSON decoding turns the duration into a float64 on the daemon side.
	fset := make(FlagSet)
	fset["timeout"] = float64(1000.0)
	fset["threshold"] = 1000

	require.Equal(t, time.Duration(1000), fset.Duration("timeout"))
	require.Equal(t, time.Duration(0), fset.Duration("threshold"))
}

func TestFlagSet_Path(t *testing.T) {
	fset := make(FlagSet)
	fset["config"] = "/var/agora"
	fset["threshold"] = 123

	require.Equal(t, "/var/agora", fset.Path("config"))
	require.Equal(t, "", fset.Path("threshold"))
}

func TestFlagSet_Int(t *testing.T) {
	fset := make(FlagSet)
	fset["threshold"] = 20
	fset["account"] = "oops"
	fset["whole"] = 30.0
	fset["fraction"] = 30.1

	require.Equal(t, 20, fset.Int("threshold"))
	require.Equal(t, 0, fset.Int("account"))
	require.Equal(t, 30, fset.Int("whole"))
	require.Equal(t, 0, fset.Int("fraction"))
}

func TestFlagSet_Bool(t *testing.T) {
	fset := make(FlagSet)
	fset["json"] = true
	fset["account"] = "oops"
	fset["verbose"] = false

	require.Equal(t, true, fset.Bool("json"))
	require.Equal(t, false, fset.Bool("account"))
	require.Equal(t, false, fset.Bool("verbose"))
}
