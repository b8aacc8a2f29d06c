package settings

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/faqlearn/pkg/models"
)

func TestDecodeStrict(t *testing.T) {
	v, err := DecodeStrict([]byte(` {"autoPublishThreshold": 85, "ratio": 0.7} `))
	require.NoError(t, err)
	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("85"), obj["autoPublishThreshold"])
	assert.Equal(t, json.Number("0.7"), obj["ratio"])

	for _, raw := range []string{"", "   ", `{"a":1} {"b":2}`, `{"a":1}x`, `{"a":`} {
		_, err := DecodeStrict([]byte(raw))
		assert.Error(t, err, "input %q", raw)
	}
}

func TestLoader_TrailingContentFallsBack(t *testing.T) {
	loader, store := newTestLoader(t)
	ctx := context.Background()
	require.NoError(t, store.PutSetting(ctx, models.SettingsConfidenceThresholds, []byte(`{"autoPublishThreshold":90} {}`)))

	got, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 85, got.Thresholds.AutoPublishThreshold)
}
