package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/tariffshift/tariffshift/pkg/log"
	"github.com/tariffshift/tariffshift/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Runs live in a "runs" collection; each run's artifacts are
// stored as JSON blobs in an "artifacts" sub-collection so the whole run can
// be fetched or deleted as a unit.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider. It registers flags for
// configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how the firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID may be empty if it can be inferred from the environment.
	return nil
}

// Init initializes the Firestore client. This must be called before using
// the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) runDoc(runID string) (*firestore.DocumentRef, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	return f.client.Collection("runs").Doc(runID), nil
}

func (f *FirestoreProvider) setRun(ctx context.Context, run types.RunRecord) error {
	doc, err := f.runDoc(run.ID)
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	_, err = doc.Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"startedAt": run.StartedAt,
		"status":    run.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// InsertRun stores a new run record.
func (f *FirestoreProvider) InsertRun(ctx context.Context, run types.RunRecord) error {
	return f.setRun(ctx, run)
}

// UpdateRun overwrites an existing run record.
func (f *FirestoreProvider) UpdateRun(ctx context.Context, run types.RunRecord) error {
	return f.setRun(ctx, run)
}

func decodeRun(ctx context.Context, doc *firestore.DocumentSnapshot) (types.RunRecord, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "run doc missing json", slog.String("runID", doc.Ref.ID))
		return types.RunRecord{}, fmt.Errorf("run document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "run doc json not string", slog.String("runID", doc.Ref.ID))
		return types.RunRecord{}, fmt.Errorf("run document %s 'json' field is not a string", doc.Ref.ID)
	}
	var run types.RunRecord
	if err := json.Unmarshal([]byte(jsonStr), &run); err != nil {
		return types.RunRecord{}, fmt.Errorf("failed to unmarshal run %s: %w", doc.Ref.ID, err)
	}
	return run, nil
}

// GetRun retrieves a run record by ID.
func (f *FirestoreProvider) GetRun(ctx context.Context, runID string) (types.RunRecord, error) {
	ref, err := f.runDoc(runID)
	if err != nil {
		return types.RunRecord{}, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return types.RunRecord{}, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return decodeRun(ctx, doc)
}

// GetLatestRun retrieves the most recently started run.
func (f *FirestoreProvider) GetLatestRun(ctx context.Context) (types.RunRecord, error) {
	iter := f.client.Collection("runs").
		OrderBy("startedAt", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return types.RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return types.RunRecord{}, fmt.Errorf("failed to get latest run: %w", err)
	}
	return decodeRun(ctx, doc)
}

func (f *FirestoreProvider) setArtifact(ctx context.Context, runID, name string, v interface{}) error {
	ref, err := f.runDoc(runID)
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s artifact: %w", name, err)
	}
	_, err = ref.Collection("artifacts").Doc(name).Set(ctx, map[string]interface{}{
		"json": string(jsonBytes),
	})
	if err != nil {
		return fmt.Errorf("failed to save %s artifact for run %s: %w", name, runID, err)
	}
	return nil
}

func (f *FirestoreProvider) getArtifact(ctx context.Context, runID, name string, v interface{}) error {
	ref, err := f.runDoc(runID)
	if err != nil {
		return err
	}
	doc, err := ref.Collection("artifacts").Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s for run %s", ErrArtifactNotFound, name, runID)
		}
		return fmt.Errorf("failed to get %s artifact for run %s: %w", name, runID, err)
	}
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "artifact doc missing json",
			slog.String("runID", runID), slog.String("artifact", name))
		return fmt.Errorf("%s artifact for run %s missing 'json' field: %w", name, runID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "artifact doc json not string",
			slog.String("runID", runID), slog.String("artifact", name))
		return fmt.Errorf("%s artifact for run %s 'json' field is not a string", name, runID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s artifact for run %s: %w", name, runID, err)
	}
	return nil
}

// UpsertTariffDocument stores the tariff artifact for a run.
func (f *FirestoreProvider) UpsertTariffDocument(ctx context.Context, runID string, doc types.TariffDocument) error {
	return f.setArtifact(ctx, runID, "tariff", doc)
}

// GetTariffDocument retrieves the tariff artifact for a run.
func (f *FirestoreProvider) GetTariffDocument(ctx context.Context, runID string) (types.TariffDocument, error) {
	var doc types.TariffDocument
	if err := f.getArtifact(ctx, runID, "tariff", &doc); err != nil {
		return types.TariffDocument{}, err
	}
	return doc, nil
}

// UpsertAssignments stores the tariff assignment table for a run.
func (f *FirestoreProvider) UpsertAssignments(ctx context.Context, runID string, rows []types.BuildingAssignment) error {
	return f.setArtifact(ctx, runID, "assignments", rows)
}

// GetAssignments retrieves the tariff assignment table for a run.
func (f *FirestoreProvider) GetAssignments(ctx context.Context, runID string) ([]types.BuildingAssignment, error) {
	var rows []types.BuildingAssignment
	if err := f.getArtifact(ctx, runID, "assignments", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertElasticityRecords stores the elasticity diagnostic table for a run.
func (f *FirestoreProvider) UpsertElasticityRecords(ctx context.Context, runID string, recs []types.ElasticityRecord) error {
	return f.setArtifact(ctx, runID, "elasticity", recs)
}

// GetElasticityRecords retrieves the elasticity diagnostic table for a run.
func (f *FirestoreProvider) GetElasticityRecords(ctx context.Context, runID string) ([]types.ElasticityRecord, error) {
	var recs []types.ElasticityRecord
	if err := f.getArtifact(ctx, runID, "elasticity", &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
