package feed

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/logger"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

type recordingPersister struct {
	mu    sync.Mutex
	saves [][]Post
}

func (r *recordingPersister) Save(posts []Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, posts)
	return nil
}

func (r *recordingPersister) lastSave() []Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		return nil
	}
	return r.saves[len(r.saves)-1]
}

func newTestStore(t *testing.T, persister Persister) *Store {
	t.Helper()
	s, err := NewStore(StoreConfig{Logger: logger.NewTest(), Persister: persister})
	require.NoError(t, err)
	return s
}

func TestStoreAppendAndGet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, nil)
	s.Append(Post{ID: "a", Prompt: "first"})
	s.Append(Post{ID: "b", Prompt: "second"})

	posts := s.List()
	require.Len(t, posts, 2)
	require.Equal(t, "b", posts[0].ID, "newest post goes first")

	got, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "first", got.Prompt)

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestStoreAppendReplacesSameID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, nil)
	s.Append(Post{ID: "a", Prompt: "v1"})
	s.Append(Post{ID: "a", Prompt: "v2"})

	posts := s.List()
	require.Len(t, posts, 1)
	require.Equal(t, "v2", posts[0].Prompt)
}

func TestStorePatch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, nil)
	s.Append(Post{ID: "a", Status: StatusAnalyzing})

	require.True(t, s.Patch("a", func(p *Post) { p.Status = StatusDone }))
	got, _ := s.Get("a")
	require.Equal(t, StatusDone, got.Status)

	require.False(t, s.Patch("missing", func(p *Post) {}))
}

func TestStoreReplies(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, nil)
	s.Append(Post{ID: "a"})

	require.True(t, s.AppendReply("a", Reply{ID: "r1", Prompt: "why?"}))
	require.True(t, s.AppendReply("a", Reply{ID: "r2", Prompt: "and?"}))
	require.False(t, s.AppendReply("missing", Reply{ID: "r3"}))

	require.True(t, s.PatchReply("a", "r1", func(r *Reply) { r.Status = StatusDone }))
	require.False(t, s.PatchReply("a", "missing", func(r *Reply) {}))

	got, _ := s.Get("a")
	require.Len(t, got.Replies, 2)
	require.Equal(t, "r1", got.Replies[0].ID, "replies keep creation order")
	require.Equal(t, StatusDone, got.Replies[0].Status)
}

func TestStoreRemove(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, nil)
	s.Append(Post{ID: "a"})
	s.Append(Post{ID: "b"})

	require.True(t, s.Remove("a"))
	require.False(t, s.Remove("a"))
	require.Len(t, s.List(), 1)
}

func TestStorePersistsAfterEveryMutation(t *testing.T) {
	t.Parallel()

	rec := &recordingPersister{}
	s := newTestStore(t, rec)

	s.Append(Post{ID: "a", Status: StatusAnalyzing})
	s.Patch("a", func(p *Post) { p.Status = StatusDone })
	s.Remove("a")

	rec.mu.Lock()
	saves := len(rec.saves)
	rec.mu.Unlock()
	require.Equal(t, 3, saves)
	require.Empty(t, rec.lastSave())
}

func TestStorePersistReadsLatestState(t *testing.T) {
	t.Parallel()

	rec := &recordingPersister{}
	s := newTestStore(t, rec)

	s.Append(Post{ID: "a"})
	s.Patch("a", func(p *Post) { p.AnalysisText = "partial" })
	s.Patch("a", func(p *Post) { p.AnalysisText += " and more" })

	last := rec.lastSave()
	require.Len(t, last, 1)
	require.Equal(t, "partial and more", last[0].AnalysisText)
}

func TestFilePersisterRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := NewFilePersister(dir)
	require.NoError(t, err)

	// Missing file reads as an empty list.
	posts, err := p.Load()
	require.NoError(t, err)
	require.Empty(t, posts)

	full := "the full analysis"
	in := []Post{{
		ID:           "a",
		CreatedAt:    1700000000000,
		Prompt:       "yas island prices",
		Title:        "Yas Island prices",
		Status:       StatusDone,
		AnalysisText: "short text",
		FullText:     &full,
		IsExpanded:   true,
		Intent:       market.Intent{QueryType: market.QueryPriceTrend},
		ChartData:    []market.Row{{"month": "2024-01", "median_price": 1000000.0}},
		ChartKeys:    []string{},
		Replies:      []Reply{{ID: "r1", Prompt: "why?", Status: StatusDone}},
	}}
	require.NoError(t, p.Save(in))

	out, err := p.Load()
	require.NoError(t, err)
	require.Equal(t, in, out)

	// The versioned filename is the persistence contract; a version bump
	// orphans old data instead of migrating it.
	require.FileExists(t, filepath.Join(dir, "posts_v1.json"))
}
