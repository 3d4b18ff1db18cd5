package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomachine/gomachine/pkg/errors"
)

func TestTestLoggerLevels(t *testing.T) {
	logger, buffer := NewTestLogger(LevelInfo)

	logger.Debug("hidden", "k", 1)
	logger.Info("fit started", SamplesKey, 100, FeaturesKey, 3)
	logger.Warn("slow", "ms", 12)
	logger.Error("fit failed", fmt.Errorf("boom"), OperationKey, OperationFit)

	assert.NotContains(t, buffer.String(), "hidden")
	assert.True(t, logger.ContainsMessage("fit started"))
	assert.True(t, logger.ContainsField(SamplesKey, 100.0))
	assert.True(t, logger.ContainsField("error", "boom"))
	assert.True(t, logger.ContainsField(OperationKey, OperationFit))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	logger.Clear()
	assert.Empty(t, buffer.String())
}

func TestTestLoggerWith(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	child := logger.With(ModelNameKey, "KMeans")
	child.Info("converged", IterationKey, 4)

	assert.True(t, logger.ContainsField(ModelNameKey, "KMeans"))
	assert.True(t, logger.ContainsField(IterationKey, 4.0))
	assert.True(t, child.Enabled(context.Background(), LevelDebug))
}

func TestZerologProviderWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf)
	p.SetLevel(LevelDebug)

	l := p.GetLoggerWithName("optim").With(ModelNameKey, "GradientDesc")
	l.Debug("iteration", IterationKey, 3, LossKey, 0.25)
	l.Error("failed", fmt.Errorf("nan cost"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "debug", first["level"])
	assert.Equal(t, "optim", first[ComponentKey])
	assert.Equal(t, "GradientDesc", first[ModelNameKey])
	assert.Equal(t, 3.0, first[IterationKey])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "nan cost", second["error"])
}

func TestZerologProviderLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf)
	p.SetLevel(LevelWarn)

	l := p.GetLogger()
	l.Info("dropped")
	assert.Empty(t, buf.String())
	assert.False(t, l.Enabled(context.Background(), LevelInfo))
	assert.True(t, l.Enabled(context.Background(), LevelError))
}

func TestWarningsRouteThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetProvider(nil)

	errors.Warn(errors.NewConvergenceWarning("GradientDesc", 10, ""))

	out := buf.String()
	assert.Contains(t, out, "ConvergenceWarning")
	assert.Contains(t, out, `"iterations":10`)

	buf.Reset()
	errors.Warn(errors.NewConvergenceWarning("GradientDesc", 3, "loss oscillates"))
	out = buf.String()
	assert.Equal(t, 1, strings.Count(out, `"message":`), out)
	assert.Contains(t, out, `"detail":"loss oscillates"`)
}

func TestSetProviderSwapsPackageLogger(t *testing.T) {
	provider, logger := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	defer SetProvider(nil)

	GetLoggerWithName("linreg").Debug("normal equations")
	assert.True(t, logger.ContainsField(ComponentKey, "linreg"))
}

func TestToLogLevel(t *testing.T) {
	lvl, err := ToLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ToLogLevel("verbose")
	assert.Error(t, err)
}

func TestErrFmtHandlerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	h := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(h)

	logger.Error("fit failed", ErrAttr(errors.NewValueError("Fit", "bad input")))

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotEmpty(t, rec[StacktraceAttrKey])
}
