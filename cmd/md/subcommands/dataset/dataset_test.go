package dataset_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opst/mdclient/cmd/md/subcommands/dataset"
	"github.com/opst/mdclient/cmd/md/subcommands/internal/commandline"
	"github.com/opst/mdclient/pkg/api/types/datasets"
	"github.com/opst/mdclient/pkg/builders"
	kflag "github.com/opst/mdclient/pkg/commandline/flag"
	mderr "github.com/opst/mdclient/pkg/errors"
	"github.com/opst/mdclient/pkg/logger"
	"github.com/opst/mdclient/pkg/rest/mock"
	"github.com/opst/mdclient/pkg/utils/try"
	"github.com/youta-t/flarc"
)

const (
	experimentId = "0b4b8c57-4b6d-4a0c-9c2b-f3d0e7d7c3a1"
	inputId      = "4f0e5a7e-3a2b-4b7f-9d0c-2f1f5c0e8a11"
	datasetId    = "9a1d2c3b-4e5f-4a6b-8c7d-0e1f2a3b4c5d"
)

func mockCommandline[T any](flags T, args map[string][]string) (commandline.MockCommandline[T], *strings.Builder) {
	stdout := new(strings.Builder)
	return commandline.MockCommandline[T]{
		Fullname_: "md dataset",
		Flags_:    flags,
		Args_:     args,
		Stdout_:   stdout,
		Stderr_:   new(strings.Builder),
	}, stdout
}

func outputId(t *testing.T, stdout *strings.Builder) string {
	t.Helper()
	got := map[string]string{}
	if err := json.Unmarshal([]byte(stdout.String()), &got); err != nil {
		t.Fatal(err)
	}
	return got["dataset_id"]
}

func TestCreateTask(t *testing.T) {
	t.Run("it creates a dataset", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.CreateDataset = func(ctx context.Context, spec datasets.CreateSpec) (string, error) {
			return datasetId, nil
		}
		cl, stdout := mockCommandline(
			dataset.CreateFlags{Name: "normalized", JobSlug: "normalisation"},
			map[string][]string{dataset.ARG_INPUT_DATASET_ID: {inputId}},
		)
		try.To(0, dataset.CreateTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)

		if len(client.Calls.CreateDataset) != 1 {
			t.Fatalf("CreateDataset is called %d times", len(client.Calls.CreateDataset))
		}
		got := client.Calls.CreateDataset[0]
		if got.Name != "normalized" || got.JobSlug != "normalisation" ||
			len(got.InputDatasetIds) != 1 || got.InputDatasetIds[0].String() != inputId {
			t.Errorf("unexpected spec: %+v", got)
		}
		if id := outputId(t, stdout); id != datasetId {
			t.Errorf("output: %s", stdout.String())
		}
	})

	t.Run("invalid input is a usage error", func(t *testing.T) {
		client := mock.New(t)
		cl, _ := mockCommandline(
			dataset.CreateFlags{Name: "normalized"},
			map[string][]string{dataset.ARG_INPUT_DATASET_ID: {inputId}},
		)
		err := dataset.CreateTask()(context.Background(), logger.Null(), client, cl, []any{})
		if !errors.Is(err, flarc.ErrUsage) || !errors.Is(err, mderr.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(client.Calls.CreateDataset) != 0 {
			t.Error("CreateDataset should not be called")
		}
	})
}

func TestPairwiseTask(t *testing.T) {
	samples := func(t *testing.T) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "samples.csv")
		content := "sample,condition\ns1,ctrl\ns2,a\ns3,b\ns4,a\n"
		if err := os.WriteFile(p, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	t.Run("against control, from the initial dataset", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.FindInitialDataset = func(ctx context.Context, id string) (datasets.Detail, error) {
			return datasets.Detail{Id: uuid.MustParse(inputId), Name: "e", Type: datasets.TypeIntensity}, nil
		}
		client.Impl.CreateDataset = func(ctx context.Context, spec datasets.CreateSpec) (string, error) {
			return datasetId, nil
		}
		count := new(kflag.Count)
		try.To(0, count.Set("3")).OrFatal(t)

		cl, stdout := mockCommandline(
			dataset.PairwiseFlags{
				Name:            "de",
				Experiment:      experimentId,
				SampleMetadata:  samples(t),
				ConditionColumn: "condition",
				Control:         "ctrl",
				Count:           count,
				NoLimmaTrend:    true,
			},
			map[string][]string{},
		)
		try.To(0, dataset.PairwiseTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)

		if len(client.Calls.FindInitialDataset) != 1 || client.Calls.FindInitialDataset[0] != experimentId {
			t.Errorf("FindInitialDataset: %v", client.Calls.FindInitialDataset)
		}
		got := client.Calls.CreateDataset[0]
		if got.JobSlug != builders.PairwiseComparisonJobSlug || got.InputDatasetIds[0].String() != inputId {
			t.Errorf("unexpected spec: %+v", got)
		}

		params := try.To(json.Marshal(got.JobRunParams)).OrFatal(t)
		want := map[string]any{}
		if err := json.Unmarshal([]byte(`{
			"condition_column": "condition",
			"condition_comparisons": {"condition_comparison_pairs": [["a", "ctrl"], ["b", "ctrl"]]},
			"experiment_design": {"sample": ["s1", "s2", "s3", "s4"], "condition": ["ctrl", "a", "b", "a"]},
			"filter_valid_values_logic": "at least one condition",
			"filter_values_criteria": {"method": "count", "filter_threshold_count": 3},
			"fit_separate_models": true,
			"limma_trend": false,
			"robust_empirical_bayes": true,
			"control_variables": null,
			"entity_type": "protein"
		}`), &want); err != nil {
			t.Fatal(err)
		}
		gotParams := map[string]any{}
		if err := json.Unmarshal(params, &gotParams); err != nil {
			t.Fatal(err)
		}
		wantJson := try.To(json.Marshal(want)).OrFatal(t)
		gotJson := try.To(json.Marshal(gotParams)).OrFatal(t)
		if string(wantJson) != string(gotJson) {
			t.Errorf("job_run_params:\n===actual===\n%s\n===expected===\n%s", gotJson, wantJson)
		}
		if id := outputId(t, stdout); id != datasetId {
			t.Errorf("output: %s", stdout.String())
		}
	})

	t.Run("explicit pairs and inputs", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.CreateDataset = func(ctx context.Context, spec datasets.CreateSpec) (string, error) {
			return datasetId, nil
		}
		pairs := new(kflag.Pairs)
		try.To(0, pairs.Set("a:b")).OrFatal(t)
		percentage := new(kflag.Fraction)
		try.To(0, percentage.Set("0.7")).OrFatal(t)

		cl, _ := mockCommandline(
			dataset.PairwiseFlags{
				Name:            "de",
				SampleMetadata:  samples(t),
				ConditionColumn: "condition",
				Compare:         pairs,
				Percentage:      percentage,
				Logic:           builders.FullExperiment,
				EntityType:      "peptide",
			},
			map[string][]string{dataset.ARG_INPUT_DATASET_ID: {inputId}},
		)
		try.To(0, dataset.PairwiseTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)

		got := client.Calls.CreateDataset[0].JobRunParams
		b := try.To(json.Marshal(got["condition_comparisons"])).OrFatal(t)
		if string(b) != `{"condition_comparison_pairs":[["a","b"]]}` {
			t.Errorf("condition_comparisons: %s", b)
		}
		b = try.To(json.Marshal(got["filter_values_criteria"])).OrFatal(t)
		if string(b) != `{"filter_threshold_percentage":0.7,"method":"percentage"}` {
			t.Errorf("filter_values_criteria: %s", b)
		}
		if got["filter_valid_values_logic"] != builders.FullExperiment || got["entity_type"] != "peptide" {
			t.Errorf("job_run_params: %v", got)
		}
	})

	type When struct {
		flags dataset.PairwiseFlags
		args  []string
	}
	usage := func(when When) func(*testing.T) {
		return func(t *testing.T) {
			client := mock.New(t)
			cl, _ := mockCommandline(
				when.flags,
				map[string][]string{dataset.ARG_INPUT_DATASET_ID: when.args},
			)
			err := dataset.PairwiseTask()(context.Background(), logger.Null(), client, cl, []any{})
			if !errors.Is(err, flarc.ErrUsage) {
				t.Errorf("unexpected error: %v", err)
			}
			if len(client.Calls.CreateDataset) != 0 {
				t.Error("CreateDataset should not be called")
			}
		}
	}

	t.Run("sample metadata is required", usage(When{
		flags: dataset.PairwiseFlags{Name: "de", ConditionColumn: "condition", Control: "ctrl"},
		args:  []string{inputId},
	}))
	t.Run("inputs or experiment is required", func(t *testing.T) {
		usage(When{
			flags: dataset.PairwiseFlags{
				Name: "de", SampleMetadata: samples(t), ConditionColumn: "condition", Control: "ctrl",
			},
		})(t)
	})
	t.Run("condition column not in sample metadata", func(t *testing.T) {
		usage(When{
			flags: dataset.PairwiseFlags{
				Name: "de", SampleMetadata: samples(t), ConditionColumn: "group", Control: "ctrl",
			},
			args: []string{inputId},
		})(t)
	})
	t.Run("no comparisons", func(t *testing.T) {
		usage(When{
			flags: dataset.PairwiseFlags{
				Name: "de", SampleMetadata: samples(t), ConditionColumn: "condition",
			},
			args: []string{inputId},
		})(t)
	})
	t.Run("both thresholds", func(t *testing.T) {
		p := new(kflag.Fraction)
		try.To(0, p.Set("0.5")).OrFatal(t)
		c := new(kflag.Count)
		try.To(0, c.Set("2")).OrFatal(t)
		usage(When{
			flags: dataset.PairwiseFlags{
				Name: "de", SampleMetadata: samples(t), ConditionColumn: "condition", Control: "ctrl",
				Percentage: p, Count: c,
			},
			args: []string{inputId},
		})(t)
	})
	t.Run("unknown logic", func(t *testing.T) {
		usage(When{
			flags: dataset.PairwiseFlags{
				Name: "de", SampleMetadata: samples(t), ConditionColumn: "condition", Control: "ctrl",
				Logic: "any",
			},
			args: []string{inputId},
		})(t)
	})

	t.Run("initial dataset is ambiguous", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.FindInitialDataset = func(ctx context.Context, id string) (datasets.Detail, error) {
			return datasets.Detail{}, mderr.ErrAmbiguousInitialDataset
		}
		cl, _ := mockCommandline(
			dataset.PairwiseFlags{
				Name: "de", Experiment: experimentId, SampleMetadata: samples(t),
				ConditionColumn: "condition", Control: "ctrl",
			},
			map[string][]string{},
		)
		err := dataset.PairwiseTask()(context.Background(), logger.Null(), client, cl, []any{})
		if !errors.Is(err, mderr.ErrAmbiguousInitialDataset) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestListTask(t *testing.T) {
	ds := []datasets.Detail{
		{Id: uuid.MustParse(inputId), Name: "e", Type: datasets.TypeIntensity, State: "COMPLETED", JobRunParams: map[string]any{}},
		{Id: uuid.MustParse(datasetId), Name: "de", Type: "PAIRWISE", State: "PROCESSING", JobRunParams: map[string]any{}},
	}

	t.Run("json", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.ListDatasets = func(ctx context.Context, id string) ([]datasets.Detail, error) {
			return ds, nil
		}
		cl, stdout := mockCommandline(
			dataset.ListFlags{},
			map[string][]string{dataset.ARG_EXPERIMENT_ID: {experimentId}},
		)
		try.To(0, dataset.ListTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)

		if len(client.Calls.ListDatasets) != 1 || client.Calls.ListDatasets[0] != experimentId {
			t.Errorf("ListDatasets: %v", client.Calls.ListDatasets)
		}
		got := []datasets.Detail{}
		if err := json.Unmarshal([]byte(stdout.String()), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].Id != ds[0].Id || got[1].State != "PROCESSING" {
			t.Errorf("output: %s", stdout.String())
		}
	})

	t.Run("summary", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.ListDatasets = func(ctx context.Context, id string) ([]datasets.Detail, error) {
			return ds, nil
		}
		cl, stdout := mockCommandline(
			dataset.ListFlags{Summary: true},
			map[string][]string{dataset.ARG_EXPERIMENT_ID: {experimentId}},
		)
		try.To(0, dataset.ListTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)

		want := ds[0].String() + "\n\n" + ds[1].String() + "\n"
		if stdout.String() != want {
			t.Errorf("output:\n%s", stdout.String())
		}
	})
}

func TestInitialTask(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.FindInitialDataset = func(ctx context.Context, id string) (datasets.Detail, error) {
			return datasets.Detail{Id: uuid.MustParse(inputId), Name: "e", Type: datasets.TypeIntensity}, nil
		}
		cl, stdout := mockCommandline(
			dataset.InitialFlags{},
			map[string][]string{dataset.ARG_EXPERIMENT_ID: {experimentId}},
		)
		try.To(0, dataset.InitialTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)
		if !strings.Contains(stdout.String(), inputId) {
			t.Errorf("output: %s", stdout.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.FindInitialDataset = func(ctx context.Context, id string) (datasets.Detail, error) {
			return datasets.Detail{}, mderr.ErrNoInitialDataset
		}
		cl, stdout := mockCommandline(
			dataset.InitialFlags{},
			map[string][]string{dataset.ARG_EXPERIMENT_ID: {experimentId}},
		)
		err := dataset.InitialTask()(context.Background(), logger.Null(), client, cl, []any{})
		if !errors.Is(err, mderr.ErrNoInitialDataset) {
			t.Errorf("unexpected error: %v", err)
		}
		if stdout.Len() != 0 {
			t.Errorf("output: %s", stdout.String())
		}
	})
}

func TestRmTask(t *testing.T) {
	t.Run("it deletes all", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.DeleteDataset = func(ctx context.Context, id string) error { return nil }
		cl, _ := mockCommandline(
			struct{}{},
			map[string][]string{dataset.ARG_DATASET_ID: {inputId, datasetId}},
		)
		try.To(0, dataset.RmTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)
		if strings.Join(client.Calls.DeleteDataset, ",") != inputId+","+datasetId {
			t.Errorf("DeleteDataset: %v", client.Calls.DeleteDataset)
		}
	})

	t.Run("it stops at the first failure", func(t *testing.T) {
		client := mock.New(t)
		expectedErr := mderr.NewRemoteCallError("delete dataset", 404, "not found")
		client.Impl.DeleteDataset = func(ctx context.Context, id string) error { return expectedErr }
		cl, _ := mockCommandline(
			struct{}{},
			map[string][]string{dataset.ARG_DATASET_ID: {inputId, datasetId}},
		)
		err := dataset.RmTask()(context.Background(), logger.Null(), client, cl, []any{})
		if !errors.Is(err, mderr.ErrRemoteCall) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(client.Calls.DeleteDataset) != 1 {
			t.Errorf("DeleteDataset: %v", client.Calls.DeleteDataset)
		}
	})
}

func TestRetryTask(t *testing.T) {
	client := mock.New(t)
	client.Impl.RetryDataset = func(ctx context.Context, id string) error { return nil }
	cl, _ := mockCommandline(
		struct{}{},
		map[string][]string{dataset.ARG_DATASET_ID: {datasetId}},
	)
	try.To(0, dataset.RetryTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)
	if len(client.Calls.RetryDataset) != 1 || client.Calls.RetryDataset[0] != datasetId {
		t.Errorf("RetryDataset: %v", client.Calls.RetryDataset)
	}
}

func TestWaitTask(t *testing.T) {
	args := map[string][]string{
		dataset.ARG_EXPERIMENT_ID: {experimentId},
		dataset.ARG_DATASET_ID:    {datasetId},
	}

	t.Run("it prints the dataset", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.WaitDataset = func(ctx context.Context, eid, did string, interval, timeout time.Duration) (datasets.Detail, error) {
			return datasets.Detail{Id: uuid.MustParse(did), Name: "de", State: "COMPLETED"}, nil
		}
		cl, stdout := mockCommandline(
			dataset.WaitFlags{Interval: 2 * time.Second, Timeout: time.Hour},
			args,
		)
		try.To(0, dataset.WaitTask()(context.Background(), logger.Null(), client, cl, []any{})).OrFatal(t)

		want := mock.WaitDatasetArgs{
			ExperimentId: experimentId, DatasetId: datasetId,
			Interval: 2 * time.Second, Timeout: time.Hour,
		}
		if len(client.Calls.WaitDataset) != 1 || client.Calls.WaitDataset[0] != want {
			t.Errorf("WaitDataset: %+v", client.Calls.WaitDataset)
		}
		if !strings.Contains(stdout.String(), `"COMPLETED"`) {
			t.Errorf("output: %s", stdout.String())
		}
	})

	t.Run("failure", func(t *testing.T) {
		client := mock.New(t)
		client.Impl.WaitDataset = func(ctx context.Context, eid, did string, interval, timeout time.Duration) (datasets.Detail, error) {
			return datasets.Detail{}, &mderr.RemoteFailureError{Resource: "dataset", Id: did, Status: "FAILED"}
		}
		cl, _ := mockCommandline(dataset.WaitFlags{Interval: time.Second}, args)
		err := dataset.WaitTask()(context.Background(), logger.Null(), client, cl, []any{})
		if !errors.Is(err, mderr.ErrRemoteFailure) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("interval should be positive", func(t *testing.T) {
		client := mock.New(t)
		cl, _ := mockCommandline(dataset.WaitFlags{}, args)
		err := dataset.WaitTask()(context.Background(), logger.Null(), client, cl, []any{})
		if !errors.Is(err, flarc.ErrUsage) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
