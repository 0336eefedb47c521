package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_CONF_KEY", "value")
	defer os.Unsetenv("TEST_CONF_KEY")

	assert.Equal(t, "value", GetEnv("TEST_CONF_KEY", "default"))
	assert.Equal(t, "default", GetEnv("TEST_CONF_MISSING", "default"))
}

func TestGetBoolEnv(t *testing.T) {
	os.Setenv("TEST_BOOL_KEY", "true")
	defer os.Unsetenv("TEST_BOOL_KEY")

	assert.True(t, GetBoolEnv("TEST_BOOL_KEY", false))
	assert.False(t, GetBoolEnv("TEST_BOOL_MISSING", false))

	os.Setenv("TEST_BOOL_KEY", "not-a-bool")
	assert.True(t, GetBoolEnv("TEST_BOOL_KEY", true))
}

func TestGetIntEnv(t *testing.T) {
	os.Setenv("TEST_INT_KEY", "42")
	defer os.Unsetenv("TEST_INT_KEY")

	assert.Equal(t, 42, GetIntEnv("TEST_INT_KEY", 7))
	assert.Equal(t, 7, GetIntEnv("TEST_INT_MISSING", 7))
}

func TestApp(t *testing.T) {
	cfg := App()
	assert.NotNil(t, cfg)
	assert.NotNil(t, cfg.Validator)

	// Singleton
	assert.Same(t, cfg, App())
}
