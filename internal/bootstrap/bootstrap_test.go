package bootstrap_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtime/internal/bootstrap"
	trackingrpc "watchtime/internal/modules/tracking/adapter/in/rpc"
	"watchtime/internal/modules/tracking/dto"
	"watchtime/internal/platform/config"
)

const videoURL = "https://www.youtube.com/watch?v=aaaa1111"

func newConfig(t *testing.T, store string) config.Config {
	t.Helper()
	dir := t.TempDir()
	yaml := "store: " + store + "\nlisten: 127.0.0.1:0\nflush_interval: 1h\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	cfg, err := config.New(dir)
	require.NoError(t, err)
	return cfg
}

func TestDaemonServesAndPersists(t *testing.T) {
	t.Parallel()
	for _, store := range []string{config.StoreSQLite, config.StoreFile} {
		t.Run(store, func(t *testing.T) {
			t.Parallel()
			cfg := newConfig(t, store)
			logger := hclog.NewNullLogger()

			daemon, err := bootstrap.NewDaemon(context.Background(), cfg, logger)
			require.NoError(t, err)
			lis, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			served := make(chan error, 1)
			go func() { served <- daemon.Serve(ctx, lis) }()

			remote, err := trackingrpc.Dial(lis.Addr().String())
			require.NoError(t, err)
			defer remote.Close()

			require.Eventually(t, func() bool {
				callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
				defer callCancel()
				_, err := remote.Status(callCtx)
				return err == nil
			}, 5*time.Second, 20*time.Millisecond)

			require.NoError(t, remote.ReportPlayback(context.Background(), dto.PlaybackInput{Title: "ニュース", URL: videoURL, IsPlaying: true}))
			playing, err := remote.IsAnyVideoPlaying(context.Background())
			require.NoError(t, err)
			assert.True(t, playing)

			cancel()
			select {
			case err := <-served:
				require.NoError(t, err)
			case <-time.After(10 * time.Second):
				t.Fatal("daemon did not stop")
			}

			offline, err := bootstrap.NewOffline(context.Background(), cfg, logger)
			require.NoError(t, err)
			defer offline.Close()

			status, err := offline.Queries.Status(context.Background())
			require.NoError(t, err)
			assert.False(t, status.Playing)
			assert.Equal(t, 1, status.Records)
			assert.Equal(t, []dto.ActivityOutput{{URL: videoURL, Title: "ニュース"}}, status.RecentActivity)
		})
	}
}

func TestOfflineWithoutSnapshot(t *testing.T) {
	t.Parallel()
	cfg := newConfig(t, config.StoreFile)
	offline, err := bootstrap.NewOffline(context.Background(), cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	defer offline.Close()

	status, err := offline.Queries.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Immersion Time Tracker", status.Name)
	assert.Zero(t, status.Records)

	_, err = os.Stat(filepath.Join(cfg.SnapshotDir, "tracker.json"))
	assert.True(t, os.IsNotExist(err), "offline reads must not write a snapshot")
}

func TestFilterOptionsCopiesSettings(t *testing.T) {
	t.Parallel()
	settings := config.DefaultSettings().Filter
	settings.BlacklistedKeywords = []string{"asmr"}
	opts := bootstrap.FilterOptions(settings)
	opts.DomainsToTrack["vimeo.com"] = true
	opts.BlacklistedKeywords[0] = "changed"

	assert.False(t, settings.DomainsToTrack["vimeo.com"])
	assert.Equal(t, "asmr", settings.BlacklistedKeywords[0])
	assert.Equal(t, "ja", opts.TargetLanguage)
}
