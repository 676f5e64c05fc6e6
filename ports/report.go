package ports

import (
	"context"

	"genesift/domain/report"
)

// ReportSink receives the finished artifacts of a run
type ReportSink interface {
	Name() string
	Save(ctx context.Context, r *report.AnalysisReport) error
}
