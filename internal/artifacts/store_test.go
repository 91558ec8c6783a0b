package artifacts

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capfactor/internal/dataset"
	"capfactor/internal/types"
)

func sampleFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f := dataset.NewFrame(2)
	require.NoError(t, f.SetText(types.ColName, []string{"Anápolis", "Goiânia"}))
	require.NoError(t, f.SetText(types.ColInstant, []string{"2024-01-01 00:00:00", "2024-01-01 01:00:00"}))
	require.NoError(t, f.SetFloat(types.ColCapacityFactor, []float64{0.25, 0.5}))
	return f
}

func TestNames(t *testing.T) {
	assert.Equal(t, "training_wind.csv", TrainingName(types.PlantWind))
	assert.Equal(t, "prediction_solar.csv", PredictionName(types.PlantSolar))
	assert.Equal(t, "forecast_wind_xgboost.csv", ForecastName(types.PlantWind, types.ModelXGBoost))
	assert.Equal(t, "evaluation_solar_mlp.json", EvaluationName(types.PlantSolar, types.ModelMLP))
}

func TestLocalStore_FrameRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(filepath.Join(t.TempDir(), "data"))

	require.NoError(t, WriteFrame(ctx, store, "training_wind.csv", sampleFrame(t)))

	got, err := ReadFrame(ctx, store, "training_wind.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{types.ColName, types.ColInstant, types.ColCapacityFactor}, got.Columns())
	assert.Equal(t, []string{"Anápolis", "Goiânia"}, got.Text(types.ColName))
	assert.Equal(t, []float64{0.25, 0.5}, got.Float(types.ColCapacityFactor))

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
	assert.Equal(t, "training_wind.csv", entries[0].Name())
}

func TestLocalStore_JSON(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	in := map[string]float64{"rmse": 0.125}
	require.NoError(t, WriteJSON(ctx, store, "evaluation_wind_mlp.json", in))

	var out map[string]float64
	require.NoError(t, ReadJSON(ctx, store, "evaluation_wind_mlp.json", &out))
	assert.Equal(t, in, out)
}

func TestLocalStore_NotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Get(context.Background(), "missing.csv")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalArtifact, appErr.Code)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(io.EOF))
}

func TestLocalStore_FailedWriteKeepsPreviousArtifact(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "a.csv", strings.NewReader("x\n1\n")))

	err := store.Put(ctx, "a.csv", io.MultiReader(strings.NewReader("x\n"), failingReader{}))
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(store.Dir(), "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "x\n1\n", string(data))
}

func TestReadFrame_ParseError(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "bad.csv", strings.NewReader("a,b\n1\n")))

	_, err := ReadFrame(ctx, store, "bad.csv")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalArtifact, appErr.Code)
	assert.False(t, IsNotFound(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
