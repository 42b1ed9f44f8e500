package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/tariffshift/tariffshift/pkg/types"
)

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Database defines the interface for persisting run records and artifacts.
type Database interface {
	// Runs
	InsertRun(ctx context.Context, run types.RunRecord) error
	UpdateRun(ctx context.Context, run types.RunRecord) error
	GetRun(ctx context.Context, runID string) (types.RunRecord, error)
	GetLatestRun(ctx context.Context) (types.RunRecord, error)

	// Artifacts
	UpsertTariffDocument(ctx context.Context, runID string, doc types.TariffDocument) error
	GetTariffDocument(ctx context.Context, runID string) (types.TariffDocument, error)
	UpsertAssignments(ctx context.Context, runID string, rows []types.BuildingAssignment) error
	GetAssignments(ctx context.Context, runID string) ([]types.BuildingAssignment, error)
	UpsertElasticityRecords(ctx context.Context, runID string, recs []types.ElasticityRecord) error
	GetElasticityRecords(ctx context.Context, runID string) ([]types.ElasticityRecord, error)

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "none", "Storage provider to use (available: none, firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "none":
			p.Database = nopDatabase{}
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// nopDatabase discards writes and reports everything as missing. It backs
// runs that only write filesystem artifacts.
type nopDatabase struct{}

func (nopDatabase) InsertRun(context.Context, types.RunRecord) error { return nil }
func (nopDatabase) UpdateRun(context.Context, types.RunRecord) error { return nil }
func (nopDatabase) GetRun(context.Context, string) (types.RunRecord, error) {
	return types.RunRecord{}, ErrRunNotFound
}
func (nopDatabase) GetLatestRun(context.Context) (types.RunRecord, error) {
	return types.RunRecord{}, ErrRunNotFound
}
func (nopDatabase) UpsertTariffDocument(context.Context, string, types.TariffDocument) error {
	return nil
}
func (nopDatabase) GetTariffDocument(context.Context, string) (types.TariffDocument, error) {
	return types.TariffDocument{}, ErrArtifactNotFound
}
func (nopDatabase) UpsertAssignments(context.Context, string, []types.BuildingAssignment) error {
	return nil
}
func (nopDatabase) GetAssignments(context.Context, string) ([]types.BuildingAssignment, error) {
	return nil, ErrArtifactNotFound
}
func (nopDatabase) UpsertElasticityRecords(context.Context, string, []types.ElasticityRecord) error {
	return nil
}
func (nopDatabase) GetElasticityRecords(context.Context, string) ([]types.ElasticityRecord, error) {
	return nil, ErrArtifactNotFound
}
func (nopDatabase) Close() error { return nil }
