package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"capfactor/internal/types"
)

// ModelRunSchema creates the model_runs table when it does not exist.
const ModelRunSchema = `CREATE TABLE IF NOT EXISTS model_runs (
	id             UUID PRIMARY KEY,
	plant_type     TEXT NOT NULL,
	model          TEXT NOT NULL,
	mse            DOUBLE PRECISION NOT NULL,
	rmse           DOUBLE PRECISION NOT NULL,
	mae            DOUBLE PRECISION NOT NULL,
	r2             DOUBLE PRECISION NOT NULL,
	cv_rmse_mean   DOUBLE PRECISION,
	cv_rmse_std    DOUBLE PRECISION,
	best_iteration INTEGER,
	train_rows     INTEGER NOT NULL,
	test_rows      INTEGER NOT NULL,
	trained_at     TIMESTAMPTZ NOT NULL
)`

// ModelRun is one persisted training outcome.
type ModelRun struct {
	ID        uuid.UUID
	PlantType types.PlantType
	Model     types.ModelKind
	Metrics   types.EvaluationMetrics
	TrainedAt time.Time
}

// ModelRunRepository records and lists training runs.
type ModelRunRepository struct {
	db DBTX
}

// NewModelRunRepository creates a repository on db.
func NewModelRunRepository(db DBTX) *ModelRunRepository {
	return &ModelRunRepository{db: db}
}

// EnsureSchema creates the model_runs table if needed.
func (r *ModelRunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, ModelRunSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create model_runs table", err)
	}
	return nil
}

// Create inserts run, assigning an ID when it has none. It returns the ID.
func (r *ModelRunRepository) Create(ctx context.Context, run ModelRun) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	m := run.Metrics
	_, err := r.db.Exec(ctx,
		`INSERT INTO model_runs (id, plant_type, model, mse, rmse, mae, r2,
			cv_rmse_mean, cv_rmse_std, best_iteration, train_rows, test_rows, trained_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, string(run.PlantType), string(run.Model), m.MSE, m.RMSE, m.MAE, m.R2,
		m.CVRMSEMean, m.CVRMSEStd, m.BestIteration, m.TrainRows, m.TestRows, run.TrainedAt.UTC(),
	)
	if err != nil {
		return uuid.Nil, types.NewAppError(types.ErrCodeInternalDB, "failed to insert model run", err)
	}
	return run.ID, nil
}

// ListRecent returns the latest runs for a plant type, newest first.
func (r *ModelRunRepository) ListRecent(ctx context.Context, plantType types.PlantType, limit int) ([]ModelRun, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, plant_type, model, mse, rmse, mae, r2,
			cv_rmse_mean, cv_rmse_std, best_iteration, train_rows, test_rows, trained_at
		 FROM model_runs
		 WHERE plant_type = $1
		 ORDER BY trained_at DESC
		 LIMIT $2`,
		string(plantType), limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list model runs", err)
	}
	defer rows.Close()

	var runs []ModelRun
	for rows.Next() {
		var (
			run           ModelRun
			plant, model  string
			m             types.EvaluationMetrics
			cvMean, cvStd *float64
			bestIteration *int
		)
		if err := rows.Scan(&run.ID, &plant, &model, &m.MSE, &m.RMSE, &m.MAE, &m.R2,
			&cvMean, &cvStd, &bestIteration, &m.TrainRows, &m.TestRows, &run.TrainedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan model run", err)
		}
		m.CVRMSEMean, m.CVRMSEStd, m.BestIteration = cvMean, cvStd, bestIteration
		run.PlantType, run.Model, run.Metrics = types.PlantType(plant), types.ModelKind(model), m
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating model runs", err)
	}
	return runs, nil
}
