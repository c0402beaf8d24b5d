// Package registry holds the trained model per family, persists
// artifacts, and keeps the explanation caches coherent by invalidating
// a family's entries whenever it is retrained.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kerremmarket/credit/pkg/classifier"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/explain"
	"github.com/Kerremmarket/credit/pkg/models"
)

// Record is the metadata kept for a trained model.
type Record struct {
	ID              string             `json:"id"`
	Family          models.ModelFamily `json:"family"`
	Features        []string           `json:"features"`
	Accuracy        float64            `json:"accuracy"`
	AUC             float64            `json:"auc"`
	ConfusionMatrix [][]int            `json:"confusion_matrix"`
	TrainedAt       time.Time          `json:"trained_at"`
}

// Registry maps model families to their current trained model.
type Registry struct {
	mu        sync.RWMutex
	trained   map[models.ModelFamily]classifier.Model
	records   map[models.ModelFamily]*Record
	engine    *explain.Engine
	modelsDir string
	logger    *zap.Logger
	seed      int64
}

// New creates a registry. The models directory may be empty to disable
// artifact persistence.
func New(engine *explain.Engine, modelsDir string, seed int64, logger *zap.Logger) *Registry {
	return &Registry{
		trained:   make(map[models.ModelFamily]classifier.Model),
		records:   make(map[models.ModelFamily]*Record),
		engine:    engine,
		modelsDir: modelsDir,
		logger:    logger.Named("registry"),
		seed:      seed,
	}
}

// Train fits a fresh model for the family on the dataset, evaluates it
// on a held-out split, replaces the previous model, and invalidates the
// family's explanation caches.
func (r *Registry) Train(family models.ModelFamily, ds *dataset.Dataset, features []string) (*Record, error) {
	if !family.Valid() {
		return nil, models.UnsupportedFamilyError("train", family)
	}
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("no training data loaded")
	}

	working := ds
	if len(features) > 0 {
		selected, err := ds.Select(features)
		if err != nil {
			return nil, fmt.Errorf("feature selection failed: %w", err)
		}
		working = selected
	}

	train, test := working.Split(0.2, r.seed)

	m, err := classifier.TrainFamily(family, train.X, train.Y, working.Features, r.seed)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	record := &Record{
		ID:              uuid.New().String(),
		Family:          family,
		Features:        working.Features,
		Accuracy:        classifier.Accuracy(m, test.X, test.Y),
		AUC:             classifier.AUC(m, test.X, test.Y),
		ConfusionMatrix: classifier.ConfusionMatrix(m, test.X, test.Y),
		TrainedAt:       time.Now().UTC(),
	}

	r.mu.Lock()
	r.trained[family] = m
	r.records[family] = record
	r.mu.Unlock()

	// Stale explanations for the previous model must never be served.
	removed := r.engine.InvalidateFamily(family)
	r.logger.Info("model trained",
		zap.String("family", string(family)),
		zap.String("id", record.ID),
		zap.Float64("accuracy", record.Accuracy),
		zap.Float64("auc", record.AUC),
		zap.Int("cache_entries_invalidated", removed))

	if err := r.persist(family, m, record); err != nil {
		r.logger.Warn("failed to persist model artifact",
			zap.String("family", string(family)), zap.Error(err))
	}

	return record, nil
}

// Get returns the trained model for a family.
func (r *Registry) Get(family models.ModelFamily) (classifier.Model, error) {
	if !family.Valid() {
		return nil, models.UnsupportedFamilyError("get model", family)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.trained[family]
	if !ok {
		return nil, fmt.Errorf("get model: %w: %s", models.ErrNotTrained, family)
	}
	return m, nil
}

// RecordFor returns the metadata for a family's current model.
func (r *Registry) RecordFor(family models.ModelFamily) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[family]
	return record, ok
}

// persist writes the model and its record next to each other under the
// models directory.
func (r *Registry) persist(family models.ModelFamily, m classifier.Model, record *Record) error {
	if r.modelsDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.modelsDir, 0755); err != nil {
		return fmt.Errorf("failed to create models dir: %w", err)
	}

	if err := classifier.SaveModel(m, r.artifactPath(family)); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := os.WriteFile(r.recordPath(family), data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// LoadArtifacts restores previously persisted models from the models
// directory. Missing or unreadable artifacts are skipped.
func (r *Registry) LoadArtifacts() int {
	if r.modelsDir == "" {
		return 0
	}

	loaded := 0
	for _, family := range models.AllFamilies {
		m, err := classifier.LoadModel(family, r.artifactPath(family))
		if err != nil {
			continue
		}

		record := &Record{}
		if data, err := os.ReadFile(r.recordPath(family)); err == nil {
			if err := json.Unmarshal(data, record); err != nil {
				record = &Record{Family: family}
			}
		}

		r.mu.Lock()
		r.trained[family] = m
		r.records[family] = record
		r.mu.Unlock()

		r.logger.Info("restored model artifact", zap.String("family", string(family)))
		loaded++
	}
	return loaded
}

func (r *Registry) artifactPath(family models.ModelFamily) string {
	return filepath.Join(r.modelsDir, string(family)+".json")
}

func (r *Registry) recordPath(family models.ModelFamily) string {
	return filepath.Join(r.modelsDir, string(family)+".meta.json")
}
