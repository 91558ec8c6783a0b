package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"capfactor/internal/types"
)

const cursorName = "plant_records"

const declarePlantRecordsSQL = `DECLARE ` + cursorName + ` NO SCROLL CURSOR FOR
	SELECT din_instante, id_estado, nom_usina_conjunto,
	       val_fatorcapacidade, val_geracaoprogramada,
	       val_geracaoverificada, val_capacidadeinstalada,
	       val_latitudesecoletora, val_longitudesecoletora
	FROM fator_capacidade
	WHERE nom_tipousina = $1
	ORDER BY nom_usina_conjunto, val_latitudesecoletora, val_longitudesecoletora, din_instante`

// cursorTx is the part of pgx.Tx the cursor uses.
type cursorTx interface {
	DBTX
	Rollback(ctx context.Context) error
}

// PlantRecordCursor streams plant records of one plant type through a
// server-side cursor inside a read-only transaction, so only one batch is
// held in memory at a time.
type PlantRecordCursor struct {
	tx     cursorTx
	closed bool
}

// OpenPlantRecordCursor begins a read-only transaction and declares the
// cursor. The caller must Close it.
func OpenPlantRecordCursor(ctx context.Context, beginner TxBeginner, plantType types.PlantType) (*PlantRecordCursor, error) {
	tx, err := beginner.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to begin read transaction", err)
	}
	return declarePlantRecordCursor(ctx, tx, plantType)
}

func declarePlantRecordCursor(ctx context.Context, tx cursorTx, plantType types.PlantType) (*PlantRecordCursor, error) {
	filter := plantType.SourceFilter()
	if filter == "" {
		_ = tx.Rollback(ctx)
		return nil, types.NewAppError(types.ErrCodeConfigInvalidPlantType, fmt.Sprintf("no source filter for plant type %q", plantType), nil)
	}
	if _, err := tx.Exec(ctx, declarePlantRecordsSQL, filter); err != nil {
		_ = tx.Rollback(ctx)
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to declare plant record cursor", err)
	}
	return &PlantRecordCursor{tx: tx}, nil
}

// Next fetches up to n rows. An empty batch means the cursor is exhausted.
func (c *PlantRecordCursor) Next(ctx context.Context, n int) ([]types.PlantRecord, error) {
	if c.closed {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "plant record cursor is closed", nil)
	}
	rows, err := c.tx.Query(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", n, cursorName))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch plant records", err)
	}
	defer rows.Close()

	batch := make([]types.PlantRecord, 0, n)
	for rows.Next() {
		var (
			rec          types.PlantRecord
			instant      time.Time
			state, plant *string
		)
		if err := rows.Scan(
			&instant, &state, &plant,
			&rec.CapacityFactor, &rec.ScheduledGeneration,
			&rec.VerifiedGeneration, &rec.InstalledCapacity,
			&rec.Lat, &rec.Lon,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plant record", err)
		}
		// din_instante is a naive timestamp recorded in UTC.
		rec.Instant = time.Date(instant.Year(), instant.Month(), instant.Day(),
			instant.Hour(), instant.Minute(), instant.Second(), 0, time.UTC)
		if state != nil {
			rec.State = *state
		}
		if plant != nil {
			rec.PlantName = *plant
		}
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating plant records", err)
	}
	return batch, nil
}

// Close releases the cursor by rolling back its transaction. It is safe to
// call more than once.
func (c *PlantRecordCursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release plant record cursor", err)
	}
	return nil
}
