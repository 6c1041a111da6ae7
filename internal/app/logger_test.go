package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerFormats(t *testing.T) {
	dev := NewLogger(&Config{AppEnv: "development", LogFormat: "pretty"})
	require.NotNil(t, dev)

	prod := NewLogger(&Config{AppEnv: "production", LogFormat: "pretty"})
	require.NotNil(t, prod)

	require.NotNil(t, NewLogger(nil))
}
