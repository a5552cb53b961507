package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Cleanup(func() { Env = nil })

	t.Run("loaded file wins over process environment", func(t *testing.T) {
		Env = map[string]string{"APP_PORT": "4000"}
		t.Setenv("APP_PORT", "9999")

		assert.Equal(t, "4000", GetEnv("APP_PORT", "1234"))
	})

	t.Run("falls back to process environment", func(t *testing.T) {
		Env = nil
		t.Setenv("APP_HOST", "0.0.0.0")

		assert.Equal(t, "0.0.0.0", GetEnv("APP_HOST", "localhost"))
	})

	t.Run("default when unset everywhere", func(t *testing.T) {
		Env = nil

		assert.Equal(t, "localhost", GetEnv("SOME_UNSET_KEY", "localhost"))
	})
}

func TestIsDev(t *testing.T) {
	t.Cleanup(func() { Env = nil })

	Env = map[string]string{"APP_ENV": "dev"}
	assert.True(t, IsDev())

	Env = map[string]string{"APP_ENV": "prod"}
	assert.False(t, IsDev())

	Env = map[string]string{}
	assert.False(t, IsDev())
}
