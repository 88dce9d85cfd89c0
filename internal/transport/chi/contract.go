package chi

import (
	"context"

	domchat "github.com/kailas-cloud/reportlens/internal/domain/chat"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
	domuser "github.com/kailas-cloud/reportlens/internal/domain/user"
	chatuc "github.com/kailas-cloud/reportlens/internal/usecase/chat"
	filesuc "github.com/kailas-cloud/reportlens/internal/usecase/files"
	healthuc "github.com/kailas-cloud/reportlens/internal/usecase/health"
	kpiuc "github.com/kailas-cloud/reportlens/internal/usecase/kpi"
	overviewuc "github.com/kailas-cloud/reportlens/internal/usecase/overview"
)

// Files manages the caller's uploaded reports.
type Files interface {
	Register(ctx context.Context, up filesuc.Upload) (domdoc.Document, bool, error)
	List(ctx context.Context, userID string) ([]domdoc.Document, error)
	Get(ctx context.Context, userID, id string) (domdoc.Document, error)
	GetByKey(ctx context.Context, userID, key string) (domdoc.Document, error)
	Status(ctx context.Context, userID, id string) (domdoc.Status, error)
	Delete(ctx context.Context, userID, id string) (domdoc.Document, error)
}

// Conversations runs chat turns and pages history.
type Conversations interface {
	Begin(ctx context.Context, ask chatuc.Ask) (*chatuc.Turn, error)
	History(ctx context.Context, userID string, scope domchat.Scope, limit int, cursor string) (domchat.Page, error)
}

// KPIs computes a KPI over two reports.
type KPIs interface {
	Compute(ctx context.Context, req kpiuc.Request) (kpiuc.Report, error)
}

// Overviews benchmarks two reports.
type Overviews interface {
	Compare(ctx context.Context, req overviewuc.Request) (overviewuc.Table, error)
}

// Users keeps account rows in sync with the identity provider.
type Users interface {
	Sync(ctx context.Context, id, email string) (domuser.User, error)
}

// Health reports backend availability.
type Health interface {
	Check(ctx context.Context) healthuc.Report
}
