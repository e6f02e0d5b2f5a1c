package adapters

import (
	"context"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/qagraph/qagraph/pkg/state"
)

// Document is one unit indexed by an internal_retrieval backend. There's
// no embedding model wired in, so retrieval scores by term overlap
// against Content rather than cosine similarity over a vector.
type Document struct {
	ID      string
	Content string
	Source  string
}

// MemoryRetriever is an in-process, brute-force term-overlap retriever.
// Grounded on pkg/vectorstore/memory.MemoryVectorStore's Upsert/Search
// shape and sort-by-score-then-truncate-to-TopK behavior.
type MemoryRetriever struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryRetriever builds an empty retriever.
func NewMemoryRetriever() *MemoryRetriever {
	return &MemoryRetriever{docs: make(map[string]Document)}
}

// Kind implements Adapter.
func (r *MemoryRetriever) Kind() Kind { return KindInternalRetrieval }

// Configured implements Adapter: an in-memory index is always ready,
// even if empty — an empty result set is a legitimate retrieval outcome,
// not a configuration problem.
func (r *MemoryRetriever) Configured() bool { return true }

// Upsert indexes or replaces documents by ID.
func (r *MemoryRetriever) Upsert(docs ...Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range docs {
		r.docs[d.ID] = d
	}
}

// Run implements Adapter.
func (r *MemoryRetriever) Run(_ context.Context, query string, opts Options) Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	type scored struct {
		doc   Document
		score float64
	}
	var candidates []scored
	for _, d := range r.docs {
		score := termOverlapScore(query, d.Content)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{doc: d, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	evidence := make([]state.Evidence, 0, len(candidates))
	for _, c := range candidates {
		score := c.score
		evidence = append(evidence, state.Evidence{Text: c.doc.Content, Source: c.doc.Source, Score: &score})
	}
	return Result{Evidence: evidence}
}

// termOverlapScore is the fraction of query terms present in content,
// case-folded. 0 when either side is empty.
func termOverlapScore(query, content string) float64 {
	qTerms := strings.Fields(strings.ToLower(query))
	if len(qTerms) == 0 {
		return 0
	}
	lowerContent := strings.ToLower(content)
	hits := 0
	for _, t := range qTerms {
		if strings.Contains(lowerContent, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(qTerms))
}

// FirestoreRetriever is a persistent internal_retrieval backend backed
// by Cloud Firestore, for deployments where the retrieval index must
// survive a worker restart. A trimmed port of pkg/vectorstore/firestore
// .FirestoreVectorStore: one flat collection, term-overlap scoring done
// in-process after a bounded document fetch rather than that package's
// composite-index filtered queries, batch imports, and TTL support,
// none of which this adapter's scope needs.
type FirestoreRetriever struct {
	client     *firestore.Client
	collection string
	fetchLimit int
}

// NewFirestoreRetriever wraps an already-constructed Firestore client.
// collection is the flat collection documents are stored in; fetchLimit
// bounds how many documents one Run call scans (the corpus this backend
// serves is assumed to fit comfortably within that scan, as term-overlap
// scoring over an unbounded collection would be a full collection scan
// per query).
func NewFirestoreRetriever(client *firestore.Client, collection string, fetchLimit int) *FirestoreRetriever {
	if fetchLimit <= 0 {
		fetchLimit = 500
	}
	return &FirestoreRetriever{client: client, collection: collection, fetchLimit: fetchLimit}
}

// Kind implements Adapter.
func (r *FirestoreRetriever) Kind() Kind { return KindInternalRetrieval }

// Configured implements Adapter.
func (r *FirestoreRetriever) Configured() bool { return r.client != nil }

type firestoreDoc struct {
	Content string `firestore:"content"`
	Source  string `firestore:"source"`
}

// Run implements Adapter.
func (r *FirestoreRetriever) Run(ctx context.Context, query string, opts Options) Result {
	if r.client == nil {
		return Result{Err: ErrNeedsConfiguration}
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	iter := r.client.Collection(r.collection).Limit(r.fetchLimit).Documents(ctx)
	defer iter.Stop()

	type scored struct {
		doc   firestoreDoc
		score float64
	}
	var candidates []scored
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return Result{Err: err}
		}
		var fd firestoreDoc
		if err := snap.DataTo(&fd); err != nil {
			continue
		}
		score := termOverlapScore(query, fd.Content)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{doc: fd, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	evidence := make([]state.Evidence, 0, len(candidates))
	for _, c := range candidates {
		score := c.score
		evidence = append(evidence, state.Evidence{Text: c.doc.Content, Source: c.doc.Source, Score: &score})
	}
	return Result{Evidence: evidence}
}
