package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tariffshift/tariffshift/pkg/storage"
	"github.com/tariffshift/tariffshift/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) InsertRun(ctx context.Context, run types.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDatabase) UpdateRun(ctx context.Context, run types.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDatabase) GetRun(ctx context.Context, runID string) (types.RunRecord, error) {
	args := m.Called(ctx, runID)
	if len(args) > 0 {
		return args.Get(0).(types.RunRecord), args.Error(1)
	}
	return types.RunRecord{}, nil
}

func (m *MockDatabase) GetLatestRun(ctx context.Context) (types.RunRecord, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.RunRecord), args.Error(1)
	}
	return types.RunRecord{}, nil
}

func (m *MockDatabase) UpsertTariffDocument(ctx context.Context, runID string, doc types.TariffDocument) error {
	args := m.Called(ctx, runID, doc)
	return args.Error(0)
}

func (m *MockDatabase) GetTariffDocument(ctx context.Context, runID string) (types.TariffDocument, error) {
	args := m.Called(ctx, runID)
	if len(args) > 0 {
		return args.Get(0).(types.TariffDocument), args.Error(1)
	}
	return types.TariffDocument{}, nil
}

func (m *MockDatabase) UpsertAssignments(ctx context.Context, runID string, rows []types.BuildingAssignment) error {
	args := m.Called(ctx, runID, rows)
	return args.Error(0)
}

func (m *MockDatabase) GetAssignments(ctx context.Context, runID string) ([]types.BuildingAssignment, error) {
	args := m.Called(ctx, runID)
	if len(args) > 0 {
		if rows, ok := args.Get(0).([]types.BuildingAssignment); ok {
			return rows, args.Error(1)
		}
		return nil, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertElasticityRecords(ctx context.Context, runID string, recs []types.ElasticityRecord) error {
	args := m.Called(ctx, runID, recs)
	return args.Error(0)
}

func (m *MockDatabase) GetElasticityRecords(ctx context.Context, runID string) ([]types.ElasticityRecord, error) {
	args := m.Called(ctx, runID)
	if len(args) > 0 {
		if recs, ok := args.Get(0).([]types.ElasticityRecord); ok {
			return recs, args.Error(1)
		}
		return nil, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
