package hypothesis

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"genesift/domain/core"
	"genesift/domain/dataset"

	"golang.org/x/sync/semaphore"
)

// TestRecord is the per-feature output of the test engine
type TestRecord struct {
	Feature    core.FeatureKey `json:"feature"`
	PValue     float64         `json:"p_value"`
	TStatistic float64         `json:"t_statistic"`
	DF         float64         `json:"df"`
	Mean0      float64         `json:"mean_0"`
	Mean1      float64         `json:"mean_1"`
	Valid      bool            `json:"valid"`
}

// Engine maps Welch's test over every feature column
type Engine struct {
	workers   int
	chunkSize int
	logger    *slog.Logger
}

// NewEngine creates an engine bounded to workers concurrent column chunks (<=0: GOMAXPROCS)
func NewEngine(workers int, logger *slog.Logger) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{workers: workers, chunkSize: 256, logger: logger}
}

// Run tests every feature of m between label classes. Output order matches
// column order. Each worker reads a disjoint column range and writes the
// matching disjoint slice of the output.
func (e *Engine) Run(ctx context.Context, m *dataset.FeatureMatrix, labels *dataset.LabelVector) ([]TestRecord, error) {
	n, p := m.Dims()
	if labels.Len() != n {
		return nil, core.NewDimensionError("labels", n, labels.Len())
	}

	records := make([]TestRecord, p)
	sem := semaphore.NewWeighted(int64(e.workers))
	var wg sync.WaitGroup

	for start := 0; start < p; start += e.chunkSize {
		end := start + e.chunkSize
		if end > p {
			end = p
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			defer sem.Release(1)
			testColumns(m, labels, start, end, records[start:end])
		}(start, end)
	}
	wg.Wait()

	invalid := 0
	for _, r := range records {
		if !r.Valid {
			invalid++
		}
	}
	if invalid > 0 {
		e.logger.Warn("features with undefined test statistic", "count", invalid, "features", p)
	}
	return records, nil
}

func testColumns(m *dataset.FeatureMatrix, labels *dataset.LabelVector, start, end int, out []TestRecord) {
	n := m.Samples()
	neg, pos := labels.Counts()
	group0 := make([]float64, 0, neg)
	group1 := make([]float64, 0, pos)
	for j := start; j < end; j++ {
		group0, group1 = group0[:0], group1[:0]
		for i := 0; i < n; i++ {
			if labels.At(i) == dataset.ClassPositive {
				group1 = append(group1, m.At(i, j))
			} else {
				group0 = append(group0, m.At(i, j))
			}
		}
		w := Welch(group0, group1)
		out[j-start] = TestRecord{
			Feature:    m.Feature(j),
			PValue:     w.PValue,
			TStatistic: w.T,
			DF:         w.DF,
			Mean0:      w.Mean0,
			Mean1:      w.Mean1,
			Valid:      w.Valid,
		}
	}
}
