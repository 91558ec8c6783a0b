// Package artifacts stores the CSV and JSON files exchanged between the
// enrichment and regression stages, on local disk or in S3.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"capfactor/internal/dataset"
	"capfactor/internal/types"
)

// Store reads and writes named artifacts.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
}

// TrainingName is the enriched plant records artifact for a plant type.
func TrainingName(plant types.PlantType) string {
	return fmt.Sprintf("training_%s.csv", plant)
}

// PredictionName is the enriched area records artifact for a plant type.
func PredictionName(plant types.PlantType) string {
	return fmt.Sprintf("prediction_%s.csv", plant)
}

// ForecastName is the predicted area records artifact for a plant type and
// model family.
func ForecastName(plant types.PlantType, model types.ModelKind) string {
	return fmt.Sprintf("forecast_%s_%s.csv", plant, model)
}

// EvaluationName is the evaluation report artifact for a plant type and
// model family.
func EvaluationName(plant types.PlantType, model types.ModelKind) string {
	return fmt.Sprintf("evaluation_%s_%s.json", plant, model)
}

// LocalStore keeps artifacts as plain files under a directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Dir returns the directory artifacts are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Put writes r to a temporary file and renames it over name, so readers
// never see a partial artifact.
func (s *LocalStore) Put(_ context.Context, name string, r io.Reader) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return artifactError("create artifact directory", s.dir, err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return artifactError("create temporary artifact", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return artifactError("write artifact", name, err)
	}
	if err := tmp.Close(); err != nil {
		return artifactError("write artifact", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return artifactError("publish artifact", name, err)
	}
	return nil
}

func (s *LocalStore) Get(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, artifactError("open artifact", name, err)
	}
	return f, nil
}

// IsNotFound reports whether err says an artifact does not exist.
func IsNotFound(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeInternalArtifact {
		return false
	}
	missing, _ := appErr.Details["not_found"].(bool)
	return missing
}

func artifactError(op, name string, err error) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalArtifact,
		fmt.Sprintf("%s %s", op, name), err,
		map[string]any{"artifact": name, "not_found": errors.Is(err, fs.ErrNotExist)})
}

// WriteFrame stores f as CSV under name.
func WriteFrame(ctx context.Context, s Store, name string, f *dataset.Frame) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(dataset.WriteCSV(pw, f))
	}()
	err := s.Put(ctx, name, pr)
	pr.CloseWithError(err)
	return err
}

// ReadFrame loads the CSV artifact name.
func ReadFrame(ctx context.Context, s Store, name string) (*dataset.Frame, error) {
	rc, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	f, err := dataset.ReadCSV(rc)
	if err != nil {
		return nil, artifactError("parse artifact", name, err)
	}
	return f, nil
}

// WriteJSON stores v as indented JSON under name.
func WriteJSON(ctx context.Context, s Store, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return artifactError("encode artifact", name, err)
	}
	return s.Put(ctx, name, bytes.NewReader(data))
}

// ReadJSON decodes the JSON artifact name into v.
func ReadJSON(ctx context.Context, s Store, name string, v any) error {
	rc, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return artifactError("decode artifact", name, err)
	}
	return nil
}
