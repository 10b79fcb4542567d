package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/config"
	"expenses/internal/core"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
)

func TestPromptConfirmer(t *testing.T) {
	e := core.Expense{ID: 7, Description: "Lunch"}
	tests := []struct {
		name  string
		input string
		yes   bool
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "full word", input: "  YES \n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "empty line", input: "\n", want: false},
		{name: "eof", input: "", want: false},
		{name: "answer without newline", input: "y", want: true},
		{name: "assume yes", input: "", yes: true, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewPromptConfirmer(strings.NewReader(tt.input), &out, nil, tt.yes)
			assert.Equal(t, tt.want, c.Confirm(context.Background(), e))
			if !tt.yes {
				assert.Contains(t, out.String(), "(Lunch) [y/N]")
			}
		})
	}
}

func TestPromptConfirmerArabic(t *testing.T) {
	var out bytes.Buffer
	c := NewPromptConfirmer(strings.NewReader("نعم\n"), &out, i18n.For(i18n.Arabic), false)
	assert.True(t, c.Confirm(context.Background(), core.Expense{ID: 3}))
	assert.Contains(t, out.String(), i18n.For(i18n.Arabic).ConfirmDelete)
	assert.Contains(t, out.String(), "(#3)")
}

func TestPromptConfirmerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	c := NewPromptConfirmer(strings.NewReader("y\n"), &out, nil, false)
	assert.False(t, c.Confirm(ctx, core.Expense{ID: 1}))
	assert.Empty(t, out.String())
}

func TestSetupLogger(t *testing.T) {
	var out bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, applog.ComponentCLI, &out)

	logger.Info("hidden")
	logger.Warn("shown")

	require.NotEmpty(t, out.String())
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"msg":"shown"`)
	assert.Contains(t, out.String(), `"component":"cli"`)
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("LOCALE", "en")
	cfg, err := LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.DataBackend)

	t.Setenv("DATA_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err = LoadAndValidateConfig()
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}

func TestGracefulShutdownFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := GracefulShutdown(parent, applog.Discard())
	defer stop()

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
