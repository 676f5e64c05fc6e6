package ports

import (
	"context"

	"genesift/domain/dataset"
)

// DatasetReader loads the two input tables. Alignment is not its concern.
type DatasetReader interface {
	ReadMatrix(ctx context.Context, path string) (dataset.RawMatrix, error)
	ReadLabels(ctx context.Context, path string, statusColumn string) (dataset.RawLabels, error)
}
