package logger_test

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/haul/internal/adapters/logger"
	"go.trai.ch/haul/internal/core/domain"
	"go.trai.ch/zerr"
)

// newTestLogger returns a logger writing uncolored output into a buffer.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New().(*logger.Logger)
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_InfoWarn(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Info("fetched models/yolov5m.hef")
	lg.Warn("duplicate destination models/yolov5m.hef")

	g := goldie.New(t)
	g.Assert(t, "info_warn", buf.Bytes())
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		goldenName string
	}{
		{
			name:       "stdlib error",
			err:        os.ErrPermission,
			goldenName: "error_simple",
		},
		{
			name: "zerr chain",
			err: zerr.Wrap(
				zerr.Wrap(errors.New("connection reset by peer"), "download interrupted"),
				"fetch failed",
			),
			goldenName: "error_chain",
		},
		{
			name: "joined sentinel",
			err: errors.Join(domain.ErrTransport, zerr.With(
				zerr.Wrap(errors.New("connection refused"), "request failed"),
				"locator", "https://example.com/a.hef",
			)),
			goldenName: "error_joined",
		},
		{
			name: "metadata is sorted",
			err: zerr.With(zerr.With(
				zerr.Wrap(domain.ErrCorruptedDownload, "digest mismatch after retries"),
				"path", "models/a.hef"),
				"attempts", 3,
			),
			goldenName: "error_metadata",
		},
		{
			name:       "metadata on a stdlib error",
			err:        zerr.With(errors.New("no space left on device"), "path", "models/a.hef"),
			goldenName: "error_metadata_stdlib",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Error(tt.err)

			g := goldie.New(t)
			g.Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_Error_Nil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_SetJSON(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)
	lg.Error(zerr.With(zerr.Wrap(errors.New("boom"), "fetch failed"), "path", "a.hef"))

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, "fetch failed")
	assert.Contains(t, out, "a.hef")
	assert.NotContains(t, out, "✗")

	buf.Reset()
	lg.SetJSON(false)
	lg.Error(errors.New("back to pretty"))
	assert.Contains(t, buf.String(), "✗ Error: back to pretty")
}

func TestLogger_SetOutput_Nil(t *testing.T) {
	require.NotPanics(t, func() {
		lg := logger.New().(*logger.Logger)
		lg.SetOutput(nil)
	})
}

func TestLogger_ConcurrentAccess(t *testing.T) {
	lg, buf := newTestLogger(t)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() { lg.Info("info") })
		wg.Go(func() { lg.Warn("warn") })
		wg.Go(func() { lg.Error(errors.New("error")) })
		wg.Go(func() { lg.SetJSON(false) })
	}
	wg.Wait()

	assert.NotEmpty(t, buf.String())
}
