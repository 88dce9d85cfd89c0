// Package vector stores page embeddings in a Redis FT index, one namespace per document.
package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/reportlens/internal/db"
	"github.com/kailas-cloud/reportlens/internal/domain"
	"github.com/kailas-cloud/reportlens/internal/domain/passage"
)

const (
	fieldNamespace = "namespace"
	fieldPage      = "page"
	fieldContent   = "content"
	fieldVector    = "vector"
)

// store is the consumer interface for the vector repository (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// IndexConfig describes the vector field of the page index.
type IndexConfig struct {
	Dimensions  int
	HNSWM       int
	EFConstruct int
}

// Repo implements namespaced page storage and similarity search.
type Repo struct {
	store     store
	keyPrefix string
	index     IndexConfig
}

// New creates a vector repository. keyPrefix scopes every key it writes.
func New(s store, keyPrefix string, index IndexConfig) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, index: index}
}

func (r *Repo) indexName() string { return r.keyPrefix + "pages:idx" }

func (r *Repo) pagePrefix() string { return r.keyPrefix + "page:" }

func (r *Repo) pageKey(ns string, n int) string {
	return r.pagePrefix() + ns + ":" + strconv.Itoa(n)
}

func (r *Repo) markerKey(ns string) string { return r.keyPrefix + "ns:" + ns }

// EnsureIndex creates the page index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index: %w", mapErr(err))
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(r.indexName()).
		Prefix(r.pagePrefix()).
		Tag(fieldNamespace).
		Numeric(fieldPage).
		Text(fieldContent).
		VectorHNSW(fieldVector, r.index.Dimensions, db.DistanceCosine, r.index.HNSWM, r.index.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", mapErr(err))
	}
	return nil
}

// Index writes all pages of a namespace in one pipelined round trip, then the
// namespace marker. Existing pages with the same numbers are overwritten.
func (r *Repo) Index(ctx context.Context, ns string, pages []passage.Page) error {
	if ns == "" {
		return fmt.Errorf("namespace is required: %w", domain.ErrInvalidRequest)
	}

	items := make([]db.HashSetItem, 0, len(pages))
	for _, p := range pages {
		if len(p.Vector) != r.index.Dimensions {
			return fmt.Errorf("page %d: vector has %d dims, index expects %d: %w",
				p.Number, len(p.Vector), r.index.Dimensions, domain.ErrInvalidRequest)
		}
		items = append(items, db.HashSetItem{
			Key: r.pageKey(ns, p.Number),
			Fields: map[string]string{
				fieldNamespace: ns,
				fieldPage:      strconv.Itoa(p.Number),
				fieldContent:   p.Text,
				fieldVector:    vectorToBytes(p.Vector),
			},
		})
	}

	if len(items) > 0 {
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("write pages %s: %w", ns, mapErr(err))
		}
	}
	if err := r.store.Set(ctx, r.markerKey(ns), []byte(strconv.Itoa(len(items)))); err != nil {
		return fmt.Errorf("write namespace marker %s: %w", ns, mapErr(err))
	}
	return nil
}

// Exists reports whether the namespace has been ingested.
func (r *Repo) Exists(ctx context.Context, ns string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.markerKey(ns))
	if err != nil {
		return false, fmt.Errorf("check namespace %s: %w", ns, mapErr(err))
	}
	return ok, nil
}

// Search returns at most k passages of ns, most similar first.
// An unknown namespace is domain.ErrNamespaceNotFound.
func (r *Repo) Search(ctx context.Context, ns string, vector []float32, k int) ([]passage.Passage, error) {
	ok, err := r.Exists(ctx, ns)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("namespace %s: %w", ns, domain.ErrNamespaceNotFound)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Filters:      []db.TagFilter{{Field: fieldNamespace, Value: ns}},
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldPage, fieldContent},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("search %s: %w", ns, domain.ErrNamespaceNotFound)
		}
		return nil, fmt.Errorf("search %s: %w", ns, mapErr(err))
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]passage.Passage, 0, min(len(sr.Entries), k))
	for _, e := range sr.Entries {
		if len(out) == k {
			break
		}
		page, _ := strconv.Atoi(e.Fields[fieldPage])
		if page == 0 {
			page = pageFromKey(e.Key)
		}
		out = append(out, passage.Passage{
			Page:  page,
			Text:  e.Fields[fieldContent],
			Score: e.Score,
		})
	}
	return out, nil
}

// Purge removes every page and the marker of a namespace.
func (r *Repo) Purge(ctx context.Context, ns string) error {
	keys, err := r.store.Scan(ctx, r.pagePrefix()+ns+":*")
	if err != nil {
		return fmt.Errorf("scan namespace %s: %w", ns, mapErr(err))
	}
	keys = append(keys, r.markerKey(ns))
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("purge namespace %s: %w", ns, mapErr(err))
	}
	return nil
}

func pageFromKey(key string) int {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return 0
	}
	n, _ := strconv.Atoi(key[i+1:])
	return n
}

// mapErr marks retryable storage failures with domain.ErrUpstreamTransient.
func mapErr(err error) error {
	if db.IsTransient(err) {
		return fmt.Errorf("%w: %w", err, domain.ErrUpstreamTransient)
	}
	return err
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
