package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memorialkit/pkg/config"
)

type cachedConfig struct {
	Name    string        `env:"MK_TEST_CACHED_NAME" envDefault:"default"`
	Timeout time.Duration `env:"MK_TEST_CACHED_TIMEOUT" envDefault:"5s"`
}

type requiredConfig struct {
	Secret string `env:"MK_TEST_REQUIRED_SECRET,required"`
}

type freshConfig struct {
	Port int `env:"MK_TEST_FRESH_PORT" envDefault:"8080"`
}

func TestLoad(t *testing.T) {
	t.Setenv("MK_TEST_CACHED_NAME", "first")

	var cfg cachedConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "first", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	t.Setenv("MK_TEST_CACHED_NAME", "second")

	var again cachedConfig
	require.NoError(t, config.Load(&again))
	assert.Equal(t, "first", again.Name, "second load must come from cache")
}

func TestLoad_Required(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	assert.Panics(t, func() {
		var c requiredConfig
		config.MustLoad(&c)
	})
}

func TestLoad_Nil(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, config.Load[cachedConfig](nil), config.ErrNilPointer)
	assert.ErrorIs(t, config.Parse[cachedConfig](nil), config.ErrNilPointer)
}

func TestParse(t *testing.T) {
	t.Setenv("MK_TEST_FRESH_PORT", "9000")

	var cfg freshConfig
	require.NoError(t, config.Parse(&cfg))
	assert.Equal(t, 9000, cfg.Port)

	t.Setenv("MK_TEST_FRESH_PORT", "not-a-number")
	assert.ErrorIs(t, config.Parse(&cfg), config.ErrParsingConfig)
}
