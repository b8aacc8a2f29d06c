package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/faqlearn/internal/db/memory"
	"github.com/thebtf/faqlearn/pkg/models"
)

func newTestLoader(t *testing.T) (*Loader, *memory.SettingsRepo) {
	t.Helper()
	store := memory.NewSettingsRepo()
	loader, err := NewLoader(store, zerolog.Nop())
	require.NoError(t, err)
	return loader, store
}

func TestLoader_DefaultsWhenEmpty(t *testing.T) {
	loader, _ := newTestLoader(t)

	got, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultLearningSettings(), got)
}

func TestLoader_PartialSectionKeepsDefaults(t *testing.T) {
	loader, store := newTestLoader(t)
	ctx := context.Background()
	require.NoError(t, store.PutSetting(ctx, models.SettingsConfidenceThresholds, []byte(`{"autoPublishThreshold":90}`)))

	got, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90, got.Thresholds.AutoPublishThreshold)
	assert.Equal(t, 60, got.Thresholds.ReviewThreshold)
}

func TestLoader_InvalidSectionFallsBack(t *testing.T) {
	tests := []struct {
		name string
		key  string
		raw  string
	}{
		{"out of range", models.SettingsConfidenceThresholds, `{"autoPublishThreshold":150}`},
		{"wrong type", models.SettingsAdvanced, `{"enableAutoPublishing":"yes"}`},
		{"unknown field", models.SettingsDataProcessing, `{"batchSize":10,"turbo":true}`},
		{"weights off", models.SettingsConfidenceCalculation, `{"sourceQualityWeight":0.9}`},
		{"review above publish", models.SettingsConfidenceThresholds, `{"autoPublishThreshold":50,"reviewThreshold":70}`},
		{"not json", models.SettingsFaqGeneration, `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, store := newTestLoader(t)
			ctx := context.Background()
			require.NoError(t, store.PutSetting(ctx, tt.key, []byte(tt.raw)))

			got, err := loader.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, models.DefaultLearningSettings(), got)
		})
	}
}

func TestLoader_UpdateRejectsInvalid(t *testing.T) {
	loader, store := newTestLoader(t)
	ctx := context.Background()

	_, err := loader.Update(ctx, models.SettingsDataProcessing, []byte(`{"batchSize":0}`))
	assert.ErrorIs(t, err, ErrInvalidSection)

	_, err = store.GetSetting(ctx, models.SettingsDataProcessing)
	assert.Error(t, err, "invalid section must not be persisted")

	got, err := loader.Update(ctx, models.SettingsDataProcessing, []byte(`{"batchSize":10,"processingDelay":0}`))
	require.NoError(t, err)
	assert.Equal(t, 10, got.DataProcessing.BatchSize)
	assert.Equal(t, 0, loader.Current().DataProcessing.ProcessingDelay)
}

func TestLoader_CurrentReturnsCopy(t *testing.T) {
	loader, _ := newTestLoader(t)
	c := loader.Current()
	c.Thresholds.AutoPublishThreshold = 1
	assert.Equal(t, 85, loader.Current().Thresholds.AutoPublishThreshold)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewFileStore(path)
	ctx := context.Background()

	_, err := store.GetSetting(ctx, models.SettingsAdvanced)
	assert.Error(t, err)

	require.NoError(t, store.PutSetting(ctx, models.SettingsAdvanced, []byte(`{"enableAutoPublishing":false}`)))
	require.NoError(t, store.PutSetting(ctx, models.SettingsDataProcessing, []byte(`{"batchSize":5}`)))

	raw, err := store.GetSetting(ctx, models.SettingsAdvanced)
	require.NoError(t, err)
	assert.JSONEq(t, `{"enableAutoPublishing":false}`, string(raw))

	loader, err := NewLoader(store, zerolog.Nop())
	require.NoError(t, err)
	got, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.Advanced.EnableAutoPublishing)
	assert.Equal(t, 5, got.DataProcessing.BatchSize)
}

func TestLoader_WatchFileReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	store := NewFileStore(path)
	loader, err := NewLoader(store, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loader.WatchFile(ctx, store)
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"confidence_thresholds":{"autoPublishThreshold":95}}`), 0o644))

	assert.Eventually(t, func() bool {
		return loader.Current().Thresholds.AutoPublishThreshold == 95
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}
