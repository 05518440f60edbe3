package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/haul/cmd/haul/commands"
	"go.trai.ch/haul/internal/app"
	"go.trai.ch/haul/internal/build"
	"go.trai.ch/haul/internal/core/domain"
)

type mockApp struct {
	syncFunc  func(ctx context.Context, opts app.RunOptions) error
	checkFunc func(ctx context.Context, opts app.RunOptions) error
	dumpFunc  func(ctx context.Context, opts app.RunOptions) error
}

func (m *mockApp) Sync(ctx context.Context, opts app.RunOptions) error {
	if m.syncFunc != nil {
		return m.syncFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Check(ctx context.Context, opts app.RunOptions) error {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Dump(ctx context.Context, opts app.RunOptions) error {
	if m.dumpFunc != nil {
		return m.dumpFunc(ctx, opts)
	}
	return nil
}

func TestCommands_Sync(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var captured app.RunOptions
		called := false

		mock := &mockApp{
			syncFunc: func(_ context.Context, opts app.RunOptions) error {
				captured = opts
				called = true
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"sync", "--root", "/opt/tappas", "-p", "rpi", "--apps", "detection,pose", "-j", "4"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, app.RunOptions{
			Platform: domain.PlatformRPi,
			Root:     "/opt/tappas",
			Apps:     []string{"detection", "pose"},
			Workers:  4,
		}, captured)
	})

	t.Run("defaults to the general platform", func(t *testing.T) {
		var captured app.RunOptions
		mock := &mockApp{
			syncFunc: func(_ context.Context, opts app.RunOptions) error {
				captured = opts
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"sync"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, domain.PlatformGeneral, captured.Platform)
		assert.Empty(t, captured.Root)
		assert.Zero(t, captured.Workers)
	})

	t.Run("returns error on sync failure", func(t *testing.T) {
		mock := &mockApp{
			syncFunc: func(_ context.Context, _ app.RunOptions) error {
				return errors.New("simulated error")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"sync"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		mock := &mockApp{
			syncFunc: func(_ context.Context, _ app.RunOptions) error {
				panic("should not be called")
			},
		}

		cli := commands.New(mock)
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
		cli.SetArgs([]string{"sync", "detection"})

		require.Error(t, cli.Execute(context.Background()))
	})
}

func TestCommands_Check(t *testing.T) {
	var captured app.RunOptions
	mock := &mockApp{
		checkFunc: func(_ context.Context, opts app.RunOptions) error {
			captured = opts
			return domain.ErrNotFresh
		},
	}

	cli := commands.New(mock)
	cli.SetArgs([]string{"check", "-m", "requirements/h10"})

	err := cli.Execute(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFresh)
	assert.Equal(t, "requirements/h10", captured.Manifests)
}

func TestCommands_Dump(t *testing.T) {
	var captured app.RunOptions
	mock := &mockApp{
		dumpFunc: func(_ context.Context, opts app.RunOptions) error {
			captured = opts
			return nil
		},
	}

	cli := commands.New(mock)
	cli.SetArgs([]string{"dump", "--file", "out.txt", "--platform", "any"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, "out.txt", captured.DumpFile)
	assert.Equal(t, domain.PlatformAny, captured.Platform)
}

func TestCommands_Version(t *testing.T) {
	mock := &mockApp{}
	cli := commands.New(mock)

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), build.Version)
}
