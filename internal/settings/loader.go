// Package settings loads the learning settings from the key to JSON settings store.
package settings

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"math"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// ErrInvalidSection is returned by Update when a section fails validation.
var ErrInvalidSection = errors.New("invalid settings section")

// weightTolerance is how far the factor weights may drift from 1.0.
const weightTolerance = 0.01

// Provider hands out the current learning settings.
type Provider interface {
	Current() *models.LearningSettings
}

// Static is a Provider that always returns the same settings.
type Static struct {
	Settings *models.LearningSettings
}

// Current returns a copy of the wrapped settings, or the defaults when nil.
func (s Static) Current() *models.LearningSettings {
	if s.Settings == nil {
		return models.DefaultLearningSettings()
	}
	c := *s.Settings
	return &c
}

// Loader merges stored sections over coded defaults and caches the result.
type Loader struct {
	store   db.SettingsStore
	schemas map[string]*jsonschema.Schema
	logger  zerolog.Logger

	mu      sync.RWMutex
	current *models.LearningSettings
}

// NewLoader compiles the section schemas and returns a loader holding the defaults.
// Call Load to read the store.
func NewLoader(store db.SettingsStore, logger zerolog.Logger) (*Loader, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Loader{
		store:   store,
		schemas: schemas,
		logger:  logger.With().Str("component", "settings").Logger(),
		current: models.DefaultLearningSettings(),
	}, nil
}

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	out := make(map[string]*jsonschema.Schema, len(models.SettingsKeys))
	for _, key := range models.SettingsKeys {
		name := key + ".schema.json"
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", name, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[key] = schema
	}
	return out, nil
}

// Current returns a copy of the last loaded settings.
func (l *Loader) Current() *models.LearningSettings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c := *l.current
	return &c
}

// Load reads every section. Missing sections keep their defaults; sections that fail to
// decode or validate are replaced by defaults and logged. Only store errors are returned.
func (l *Loader) Load(ctx context.Context) (*models.LearningSettings, error) {
	defaults := models.DefaultLearningSettings()
	merged := models.DefaultLearningSettings()

	for _, key := range models.SettingsKeys {
		raw, err := l.store.GetSetting(ctx, key)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read setting %s: %w", key, err)
		}
		if err := l.apply(merged, key, raw); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("Invalid settings section, using defaults")
			restoreSection(merged, defaults, key)
		}
	}

	l.mu.Lock()
	l.current = merged
	l.mu.Unlock()

	c := *merged
	return &c, nil
}

// Update validates one section, persists it and reloads.
func (l *Loader) Update(ctx context.Context, key string, raw []byte) (*models.LearningSettings, error) {
	probe := models.DefaultLearningSettings()
	if err := l.apply(probe, key, raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSection, key, err)
	}
	if err := l.store.PutSetting(ctx, key, raw); err != nil {
		return nil, fmt.Errorf("write setting %s: %w", key, err)
	}
	return l.Load(ctx)
}

func (l *Loader) apply(s *models.LearningSettings, key string, raw []byte) error {
	schema, ok := l.schemas[key]
	if !ok {
		return fmt.Errorf("unknown settings key %q", key)
	}

	value, err := DecodeStrict(raw)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	var target interface{}
	switch key {
	case models.SettingsConfidenceThresholds:
		target = &s.Thresholds
	case models.SettingsFaqGeneration:
		target = &s.Generation
	case models.SettingsConfidenceCalculation:
		target = &s.Weights
	case models.SettingsAdvanced:
		target = &s.Advanced
	case models.SettingsDataProcessing:
		target = &s.DataProcessing
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return validateSemantics(s, key)
}

func validateSemantics(s *models.LearningSettings, key string) error {
	switch key {
	case models.SettingsConfidenceThresholds:
		if s.Thresholds.ReviewThreshold > s.Thresholds.AutoPublishThreshold {
			return fmt.Errorf("reviewThreshold %d exceeds autoPublishThreshold %d",
				s.Thresholds.ReviewThreshold, s.Thresholds.AutoPublishThreshold)
		}
	case models.SettingsConfidenceCalculation:
		if sum := s.Weights.Sum(); math.Abs(sum-1.0) > weightTolerance {
			return fmt.Errorf("weights sum to %.3f, want 1.0", sum)
		}
	}
	return nil
}

func restoreSection(dst, defaults *models.LearningSettings, key string) {
	switch key {
	case models.SettingsConfidenceThresholds:
		dst.Thresholds = defaults.Thresholds
	case models.SettingsFaqGeneration:
		dst.Generation = defaults.Generation
	case models.SettingsConfidenceCalculation:
		dst.Weights = defaults.Weights
	case models.SettingsAdvanced:
		dst.Advanced = defaults.Advanced
	case models.SettingsDataProcessing:
		dst.DataProcessing = defaults.DataProcessing
	}
}
