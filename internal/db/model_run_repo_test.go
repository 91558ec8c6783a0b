package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"capfactor/internal/types"
)

func TestModelRunRepository_Create(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewModelRunRepository(dbMock)
	ctx := context.Background()

	cvMean, cvStd, best := 0.081, 0.004, 212
	run := ModelRun{
		PlantType: types.PlantWind,
		Model:     types.ModelXGBoost,
		Metrics: types.EvaluationMetrics{
			MSE: 0.0064, RMSE: 0.08, MAE: 0.05, R2: 0.87,
			CVRMSEMean: &cvMean, CVRMSEStd: &cvStd, BestIteration: &best,
			TrainRows: 800, TestRows: 200,
		},
		TrainedAt: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
	}

	var captured []any
	dbMock.On("Exec", ctx, mock.MatchedBy(func(sql string) bool { return true }), mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(2).([]any) }).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	id, err := repo.Create(ctx, run)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	require.Len(t, captured, 13)
	assert.Equal(t, id, captured[0])
	assert.Equal(t, "wind", captured[1])
	assert.Equal(t, "xgboost", captured[2])
	assert.Equal(t, &cvMean, captured[7])
	assert.Equal(t, &best, captured[9])
	assert.Equal(t, 800, captured[10])
}

func TestModelRunRepository_CreateKeepsGivenID(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewModelRunRepository(dbMock)
	given := uuid.New()

	dbMock.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	id, err := repo.Create(context.Background(), ModelRun{ID: given, PlantType: types.PlantSolar, Model: types.ModelMLP})
	require.NoError(t, err)
	assert.Equal(t, given, id)
}

func TestModelRunRepository_CreateError(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewModelRunRepository(dbMock)
	dbMock.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, errors.New("deadlock"))

	_, err := repo.Create(context.Background(), ModelRun{})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestModelRunRepository_ListRecent(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewModelRunRepository(dbMock)
	ctx := context.Background()

	id := uuid.New()
	trainedAt := time.Date(2025, 10, 2, 8, 0, 0, 0, time.UTC)
	rows := newMockRows(
		[]any{id, "solar", "random_forest", 0.01, 0.1, 0.07, 0.8, nil, nil, nil, 1000, 250, trainedAt},
	)
	dbMock.On("Query", ctx, mock.Anything, []any{"solar", 5}).Return(rows, nil)

	runs, err := repo.ListRecent(ctx, types.PlantSolar, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, types.PlantSolar, got.PlantType)
	assert.Equal(t, types.ModelRandomForest, got.Model)
	assert.Equal(t, 0.8, got.Metrics.R2)
	assert.Nil(t, got.Metrics.CVRMSEMean)
	assert.Nil(t, got.Metrics.BestIteration)
	assert.Equal(t, 250, got.Metrics.TestRows)
	assert.Equal(t, trainedAt, got.TrainedAt)
	assert.True(t, rows.closed)
}

func TestModelRunRepository_EnsureSchema(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewModelRunRepository(dbMock)
	dbMock.On("Exec", mock.Anything, ModelRunSchema, []any(nil)).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, repo.EnsureSchema(context.Background()))
	dbMock.AssertExpectations(t)
}
