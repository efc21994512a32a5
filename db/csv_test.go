package db

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"calhousing/housing"
)

func sampleRecord(prediction float64) housing.Record {
	return housing.Record{
		Features:   []float64{8.3252, 41, 6.984127, 1.02381, 322, 2.555556, 37.88, -122.23},
		Prediction: prediction,
	}
}

func TestCSVLogAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	log := NewCSVLog(path)
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		if err := log.Append(ctx, sampleRecord(float64(i)+0.5)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != n+1 {
		t.Fatalf("expected %d rows, got %d", n+1, len(rows))
	}
	want := []string{"MedInc", "HouseAge", "AveRooms", "AveBedrms", "Population", "AveOccup", "Latitude", "Longitude", "Prediction"}
	if !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[3][8] != "2.5" {
		t.Fatalf("unexpected prediction cell: %v", rows[3])
	}
}

func TestCSVLogLoadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	log := NewCSVLog(path)
	ctx := context.Background()

	_, err := log.LoadAll(ctx)
	if !errors.Is(err, ErrNoLog) {
		t.Fatalf("expected ErrNoLog, got %v", err)
	}

	for _, p := range []float64{1.5, 2.25} {
		if err := log.Append(ctx, sampleRecord(p)); err != nil {
			t.Fatal(err)
		}
	}
	records, err := log.LoadAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[1].Prediction != 2.25 || records[0].Features[0] != 8.3252 {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestCSVLogLoadAllEmptyAndMalformed(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	empty := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	records, err := NewCSVLog(empty).LoadAll(ctx)
	if err != nil || len(records) != 0 {
		t.Fatalf("expected no records, got %v %v", records, err)
	}

	bad := filepath.Join(dir, "bad.csv")
	body := strings.Join(housing.Header(), ",") + "\n1,2,3\n"
	if err := os.WriteFile(bad, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = NewCSVLog(bad).LoadAll(ctx)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestCSVLogAppendRejectsShortRecord(t *testing.T) {
	log := NewCSVLog(filepath.Join(t.TempDir(), "p.csv"))
	if err := log.Append(context.Background(), housing.Record{Features: []float64{1}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCSVLogAppendUnwritablePath(t *testing.T) {
	log := NewCSVLog(filepath.Join(t.TempDir(), "missing", "p.csv"))
	if err := log.Append(context.Background(), sampleRecord(1)); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(BackendCSV, filepath.Join(dir, "p.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*CSVLog); !ok {
		t.Fatalf("expected CSVLog, got %T", store)
	}
	if _, err := Open("parquet", filepath.Join(dir, "p.parquet")); err == nil {
		t.Fatal("expected unknown backend error")
	}
}
