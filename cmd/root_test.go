package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	prevDebug, prevLevel := debug, zerolog.GlobalLevel()
	t.Cleanup(func() {
		debug = prevDebug
		zerolog.SetGlobalLevel(prevLevel)
	})

	tests := []struct {
		name  string
		debug bool
		want  zerolog.Level
	}{
		{"info by default", false, zerolog.InfoLevel},
		{"debug flag", true, zerolog.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			debug = tt.debug
			setupLogging()
			require.NotNil(t, logger)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
			assert.Equal(t, time.RFC3339, zerolog.TimeFieldFormat)
		})
	}
}

func TestSetupTracingDisabledLeavesContext(t *testing.T) {
	viper.Set("trace", false)
	t.Cleanup(func() { viper.Set("trace", nil) })

	cmd := &cobra.Command{}
	ctx := context.WithValue(context.Background(), markerKey{}, "marker")
	cmd.SetContext(ctx)

	setupTracing(cmd)
	assert.False(t, traceEnabled)
	assert.Equal(t, ctx, cmd.Context())
}

type markerKey struct{}
