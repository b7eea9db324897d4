package mock

import (
	"context"
	"testing"
	"time"

	"github.com/opst/mdclient/pkg/api/types/datasets"
	"github.com/opst/mdclient/pkg/api/types/experiments"
	"github.com/opst/mdclient/pkg/metadata"
	"github.com/opst/mdclient/pkg/rest"
	"github.com/opst/mdclient/pkg/utils/retry"
)

type UpdateSampleMetadataArgs struct {
	ExperimentId   string
	SampleMetadata metadata.SampleMetadata
}

type WaitExperimentArgs struct {
	ExperimentId string
	Interval     time.Duration
	Timeout      time.Duration
}

type WaitDatasetArgs struct {
	ExperimentId string
	DatasetId    string
	Interval     time.Duration
	Timeout      time.Duration
}

func New(t *testing.T) *mockMDClient {
	return &mockMDClient{t: t}
}

type mockMDClient struct {
	t    *testing.T
	Impl struct {
		CreateExperiment     func(ctx context.Context, exp experiments.Detail) (string, error)
		GetExperiment        func(ctx context.Context, experimentId string) (experiments.Detail, error)
		GetExperimentByName  func(ctx context.Context, name string) (experiments.Detail, error)
		UpdateSampleMetadata func(ctx context.Context, experimentId string, sm metadata.SampleMetadata) error
		WaitExperiment       func(ctx context.Context, experimentId string, interval time.Duration, timeout time.Duration) (experiments.Detail, error)
		CreateDataset        func(ctx context.Context, spec datasets.CreateSpec) (string, error)
		ListDatasets         func(ctx context.Context, experimentId string) ([]datasets.Detail, error)
		DeleteDataset        func(ctx context.Context, datasetId string) error
		RetryDataset         func(ctx context.Context, datasetId string) error
		WaitDataset          func(ctx context.Context, experimentId string, datasetId string, interval time.Duration, timeout time.Duration) (datasets.Detail, error)
		FindInitialDataset   func(ctx context.Context, experimentId string) (datasets.Detail, error)
		Health               func(ctx context.Context) map[string]any
	}
	Calls struct {
		CreateExperiment     []experiments.Detail
		GetExperiment        []string
		GetExperimentByName  []string
		UpdateSampleMetadata []UpdateSampleMetadataArgs
		WaitExperiment       []WaitExperimentArgs
		CreateDataset        []datasets.CreateSpec
		ListDatasets         []string
		DeleteDataset        []string
		RetryDataset         []string
		WaitDataset          []WaitDatasetArgs
		FindInitialDataset   []string
		Health               int
	}
}

var _ rest.MDClient = &mockMDClient{}

func (m *mockMDClient) CreateExperiment(ctx context.Context, exp experiments.Detail) (string, error) {
	m.t.Helper()

	m.Calls.CreateExperiment = append(m.Calls.CreateExperiment, exp)
	if m.Impl.CreateExperiment == nil {
		m.t.Fatal("CreateExperiment is not ready to be called")
	}
	return m.Impl.CreateExperiment(ctx, exp)
}

func (m *mockMDClient) GetExperiment(ctx context.Context, experimentId string) (experiments.Detail, error) {
	m.t.Helper()

	m.Calls.GetExperiment = append(m.Calls.GetExperiment, experimentId)
	if m.Impl.GetExperiment == nil {
		m.t.Fatal("GetExperiment is not ready to be called")
	}
	return m.Impl.GetExperiment(ctx, experimentId)
}

func (m *mockMDClient) GetExperimentByName(ctx context.Context, name string) (experiments.Detail, error) {
	m.t.Helper()

	m.Calls.GetExperimentByName = append(m.Calls.GetExperimentByName, name)
	if m.Impl.GetExperimentByName == nil {
		m.t.Fatal("GetExperimentByName is not ready to be called")
	}
	return m.Impl.GetExperimentByName(ctx, name)
}

func (m *mockMDClient) UpdateSampleMetadata(ctx context.Context, experimentId string, sm metadata.SampleMetadata) error {
	m.t.Helper()

	m.Calls.UpdateSampleMetadata = append(
		m.Calls.UpdateSampleMetadata,
		UpdateSampleMetadataArgs{ExperimentId: experimentId, SampleMetadata: sm},
	)
	if m.Impl.UpdateSampleMetadata == nil {
		m.t.Fatal("UpdateSampleMetadata is not ready to be called")
	}
	return m.Impl.UpdateSampleMetadata(ctx, experimentId, sm)
}

func (m *mockMDClient) WaitExperiment(ctx context.Context, experimentId string, interval time.Duration, timeout time.Duration) (experiments.Detail, error) {
	m.t.Helper()

	m.Calls.WaitExperiment = append(
		m.Calls.WaitExperiment,
		WaitExperimentArgs{ExperimentId: experimentId, Interval: interval, Timeout: timeout},
	)
	if m.Impl.WaitExperiment == nil {
		m.t.Fatal("WaitExperiment is not ready to be called")
	}
	return m.Impl.WaitExperiment(ctx, experimentId, interval, timeout)
}

// WaitExperimentAsync calls WaitExperiment mock synchronously, and wraps its result.
func (m *mockMDClient) WaitExperimentAsync(ctx context.Context, experimentId string, interval time.Duration, timeout time.Duration) retry.Promise[experiments.Detail] {
	m.t.Helper()

	exp, err := m.WaitExperiment(ctx, experimentId, interval, timeout)
	if err != nil {
		return retry.Failed[experiments.Detail](err)
	}
	return retry.Ok(exp)
}

func (m *mockMDClient) CreateDataset(ctx context.Context, spec datasets.CreateSpec) (string, error) {
	m.t.Helper()

	m.Calls.CreateDataset = append(m.Calls.CreateDataset, spec)
	if m.Impl.CreateDataset == nil {
		m.t.Fatal("CreateDataset is not ready to be called")
	}
	return m.Impl.CreateDataset(ctx, spec)
}

func (m *mockMDClient) ListDatasets(ctx context.Context, experimentId string) ([]datasets.Detail, error) {
	m.t.Helper()

	m.Calls.ListDatasets = append(m.Calls.ListDatasets, experimentId)
	if m.Impl.ListDatasets == nil {
		m.t.Fatal("ListDatasets is not ready to be called")
	}
	return m.Impl.ListDatasets(ctx, experimentId)
}

func (m *mockMDClient) DeleteDataset(ctx context.Context, datasetId string) error {
	m.t.Helper()

	m.Calls.DeleteDataset = append(m.Calls.DeleteDataset, datasetId)
	if m.Impl.DeleteDataset == nil {
		m.t.Fatal("DeleteDataset is not ready to be called")
	}
	return m.Impl.DeleteDataset(ctx, datasetId)
}

func (m *mockMDClient) RetryDataset(ctx context.Context, datasetId string) error {
	m.t.Helper()

	m.Calls.RetryDataset = append(m.Calls.RetryDataset, datasetId)
	if m.Impl.RetryDataset == nil {
		m.t.Fatal("RetryDataset is not ready to be called")
	}
	return m.Impl.RetryDataset(ctx, datasetId)
}

func (m *mockMDClient) WaitDataset(ctx context.Context, experimentId string, datasetId string, interval time.Duration, timeout time.Duration) (datasets.Detail, error) {
	m.t.Helper()

	m.Calls.WaitDataset = append(
		m.Calls.WaitDataset,
		WaitDatasetArgs{ExperimentId: experimentId, DatasetId: datasetId, Interval: interval, Timeout: timeout},
	)
	if m.Impl.WaitDataset == nil {
		m.t.Fatal("WaitDataset is not ready to be called")
	}
	return m.Impl.WaitDataset(ctx, experimentId, datasetId, interval, timeout)
}

// WaitDatasetAsync calls WaitDataset mock synchronously, and wraps its result.
func (m *mockMDClient) WaitDatasetAsync(ctx context.Context, experimentId string, datasetId string, interval time.Duration, timeout time.Duration) retry.Promise[datasets.Detail] {
	m.t.Helper()

	ds, err := m.WaitDataset(ctx, experimentId, datasetId, interval, timeout)
	if err != nil {
		return retry.Failed[datasets.Detail](err)
	}
	return retry.Ok(ds)
}

func (m *mockMDClient) FindInitialDataset(ctx context.Context, experimentId string) (datasets.Detail, error) {
	m.t.Helper()

	m.Calls.FindInitialDataset = append(m.Calls.FindInitialDataset, experimentId)
	if m.Impl.FindInitialDataset == nil {
		m.t.Fatal("FindInitialDataset is not ready to be called")
	}
	return m.Impl.FindInitialDataset(ctx, experimentId)
}

func (m *mockMDClient) Health(ctx context.Context) map[string]any {
	m.t.Helper()

	m.Calls.Health += 1
	if m.Impl.Health == nil {
		m.t.Fatal("Health is not ready to be called")
	}
	return m.Impl.Health(ctx)
}
