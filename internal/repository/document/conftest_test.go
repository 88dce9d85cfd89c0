package document

import (
	"context"
	"testing"

	"github.com/kailas-cloud/reportlens/internal/db/sqldb"
	domdoc "github.com/kailas-cloud/reportlens/internal/domain/document"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := sqldb.OpenMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close(db) })

	r := New(db)
	if err := r.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return r
}

func mustNew(t *testing.T, owner, key string) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(owner, key, key+".pdf", "https://files.example.com/"+key)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return d
}
