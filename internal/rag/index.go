package rag

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// Hit is a chunk returned by a search with its fused score and 1-based rank.
type Hit struct {
	Chunk
	Score float64
	Rank  int
}

// Index is a transient hybrid index: BM25 over chunk text in a memory-only
// bleve index plus brute-force cosine similarity over chunk vectors.
// It is not safe for concurrent use.
type Index struct {
	bleve   bleve.Index
	chunks  []Chunk
	vectors [][]float32
}

func NewIndex() (*Index, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{bleve: index}, nil
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int { return len(x.chunks) }

// Add indexes chunk with its embedding.
func (x *Index) Add(chunk Chunk, vec []float32) error {
	id := strconv.Itoa(len(x.chunks))
	if err := x.bleve.Index(id, chunk); err != nil {
		return fmt.Errorf("index chunk %s: %w", id, err)
	}
	x.chunks = append(x.chunks, chunk)
	x.vectors = append(x.vectors, vec)
	return nil
}

// Search returns up to k chunks ranked by fusing the BM25 ranking for query
// with the cosine ranking for vec.
func (x *Index) Search(query string, vec []float32, k int) ([]Hit, error) {
	if k <= 0 || len(x.chunks) == 0 {
		return nil, nil
	}
	lexical, err := x.bm25Search(query, k)
	if err != nil {
		return nil, err
	}
	return fuseRRF(lexical, x.vectorSearch(vec, k), k), nil
}

func (x *Index) Close() error {
	return x.bleve.Close()
}

func (x *Index) bm25Search(q string, k int) ([]Hit, error) {
	if q == "" {
		return nil, nil
	}
	searchReq := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k*3, 0, false)
	res, err := x.bleve.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	var out []Hit
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(x.chunks) {
			continue
		}
		out = append(out, Hit{Chunk: x.chunks[i], Score: hit.Score, Rank: len(out) + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (x *Index) vectorSearch(q []float32, k int) []Hit {
	if len(q) == 0 {
		return nil
	}
	type scored struct {
		pos   int
		score float64
	}
	scoreds := make([]scored, 0, len(x.vectors))
	for i, v := range x.vectors {
		scoreds = append(scoreds, scored{pos: i, score: cosine(q, v)})
	}
	sort.SliceStable(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	out := make([]Hit, 0, min(k, len(scoreds)))
	for i := 0; i < min(k, len(scoreds)); i++ {
		sc := scoreds[i]
		out = append(out, Hit{Chunk: x.chunks[sc.pos], Score: sc.score, Rank: i + 1})
	}
	return out
}

// fuseRRF merges rankings by reciprocal rank. Hits are keyed by their chunk,
// so identical text from the same ticket collapses into one hit.
func fuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		hit   Hit
		score float64
		first int
	}
	m := map[Chunk]*agg{}
	seq := 0
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.Chunk]
			if !ok {
				x = &agg{hit: h, first: seq}
				m[h.Chunk] = x
				seq++
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)

	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].first < items[j].first
	})
	out := make([]Hit, 0, min(k, len(items)))
	for i := 0; i < min(k, len(items)); i++ {
		h := items[i].hit
		h.Score = items[i].score
		h.Rank = i + 1
		out = append(out, h)
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
