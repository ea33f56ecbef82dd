package logging

import (
	"testing"

	"github.com/agentic-research/sitemap/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	for _, format := range []string{config.FormatConsole, config.FormatJSON} {
		t.Run(format, func(t *testing.T) {
			log, err := New(config.LogConfig{Level: "warn", Format: format})
			require.NoError(t, err)
			assert.False(t, log.Core().Enabled(zap.InfoLevel))
			assert.True(t, log.Core().Enabled(zap.WarnLevel))
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty", Format: config.FormatJSON})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Level: "info", Format: "yaml"})
	assert.Error(t, err)
}
