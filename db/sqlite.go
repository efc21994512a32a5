package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"calhousing/housing"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLog keeps the prediction log in a single SQLite table.
type SQLiteLog struct {
	path     string
	database *sql.DB
}

// OpenSQLite opens (creating if needed) the log database at path.
func OpenSQLite(path string) (*SQLiteLog, error) {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        med_inc REAL NOT NULL,
        house_age REAL NOT NULL,
        ave_rooms REAL NOT NULL,
        ave_bedrms REAL NOT NULL,
        population REAL NOT NULL,
        ave_occup REAL NOT NULL,
        latitude REAL NOT NULL,
        longitude REAL NOT NULL,
        prediction REAL NOT NULL,
        created_at DATETIME NOT NULL
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &SQLiteLog{path: path, database: database}, nil
}

func (l *SQLiteLog) Path() string { return l.path }

func (l *SQLiteLog) Close() error {
	return l.database.Close()
}

func (l *SQLiteLog) Append(ctx context.Context, rec housing.Record) error {
	if len(rec.Features) != housing.NumFeatures {
		return fmt.Errorf("record has %d features, expected %d", len(rec.Features), housing.NumFeatures)
	}
	f := rec.Features
	_, err := l.database.ExecContext(ctx, `
        INSERT INTO predictions (
            med_inc, house_age, ave_rooms, ave_bedrms,
            population, ave_occup, latitude, longitude,
            prediction, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f[0], f[1], f[2], f[3], f[4], f[5], f[6], f[7], rec.Prediction, time.Now().UTC())
	return err
}

func (l *SQLiteLog) LoadAll(ctx context.Context) ([]housing.Record, error) {
	rows, err := l.database.QueryContext(ctx, `
        SELECT med_inc, house_age, ave_rooms, ave_bedrms,
               population, ave_occup, latitude, longitude, prediction
        FROM predictions
        ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]housing.Record, 0)
	for rows.Next() {
		f := make([]float64, housing.NumFeatures)
		var rec housing.Record
		if err := rows.Scan(&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &rec.Prediction); err != nil {
			return nil, err
		}
		rec.Features = f
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
