package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/droidprobe/pkg/config"
	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "catalog.db"))
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := OpenRedis(context.Background(), mr.Addr(), 0, "test")
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_ReplaceModules(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			require.NoError(t, s.ReplaceModules(ctx, []string{"test_wifi", "Message", "test_audio_module"}))
			got, err := s.Modules(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"Message", "test_audio_module", "test_wifi"}, got)

			require.NoError(t, s.ReplaceModules(ctx, []string{"test_camera"}))
			got, err = s.Modules(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"test_camera"}, got)

			require.NoError(t, s.ReplaceModules(ctx, nil))
			got, err = s.Modules(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_Runs(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "a", Module: "test_wifi", Case: "test_tc001", Method: "Default", Outcome: "passed", Started: base, Duration: 1500 * time.Millisecond},
		{ID: "b", Module: "Message", Case: "test_url", Method: "Randomized", Email: "qa@example.com",
			Notify: []string{"PRE", "POST"}, Outcome: "failed", Error: "send button not found", Started: base.Add(time.Minute), Duration: time.Second},
		{ID: "c", Module: "test_phone", Case: "test_phn_01", Method: "Default", Serial: "emulator-5554", Outcome: "skipped", Started: base.Add(2 * time.Minute)},
	}
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			for _, r := range runs {
				require.NoError(t, s.RecordRun(ctx, r))
			}

			all, err := s.Runs(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

			b := all[1]
			assert.Equal(t, []string{"PRE", "POST"}, b.Notify)
			assert.Equal(t, "send button not found", b.Error)
			assert.Equal(t, "qa@example.com", b.Email)
			assert.True(t, b.Started.Equal(runs[1].Started), "started = %v", b.Started)
			assert.Equal(t, time.Second, b.Duration)

			limited, err := s.Runs(ctx, 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
			assert.Equal(t, "c", limited[0].ID)
		})
	}
}

func TestSync(t *testing.T) {
	r := suite.NewRegistry()
	noop := func(*suite.State) {}
	require.NoError(t, r.Add(&suite.Module{Name: "test_b", Cases: []*suite.Case{{Name: "test_x", Func: noop}}}))
	require.NoError(t, r.Add(&suite.Module{Name: "test_a", Cases: []*suite.Case{{Name: "test_y", Func: noop}}}))

	s := NewMemory()
	s.ReplaceModules(context.Background(), []string{"stale"})

	names, err := Sync(context.Background(), s, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_a", "test_b"}, names)

	stored, _ := s.Modules(context.Background())
	assert.Equal(t, []string{"test_a", "test_b"}, stored)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Catalog{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(ctx, config.Catalog{Backend: "none"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(ctx, config.Catalog{Backend: "mongo"})
	assert.Error(t, err)

	s, err = Open(ctx, config.Catalog{Backend: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpenRedis_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = OpenRedis(ctx, addr, 0, "")
	assert.Error(t, err)
}
