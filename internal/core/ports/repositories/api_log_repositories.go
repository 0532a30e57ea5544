package repositories

import (
	"context"

	"github.com/TallySync/tally_sync_app/internal/core/domain"
)

// ApiLogWriter appends outbound call records. Rows are write-once; there is
// deliberately no update or delete operation.
type ApiLogWriter interface {
	AppendLog(ctx context.Context, log domain.ApiLog) error
}

// ApiLogReader reads recent outbound call records for diagnostics.
type ApiLogReader interface {
	FindRecentLogs(ctx context.Context, limit int) ([]domain.ApiLog, error)
}

// ApiLogRepositoryFacade combines the api log repository interfaces.
type ApiLogRepositoryFacade interface {
	ApiLogReader
	ApiLogWriter
}
