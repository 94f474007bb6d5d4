// Package poststest provides conformance tests for posts.Repository implementations
package poststest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trossachsgroup/site-backend/internal/posts"
)

// Clock is the fixed time every factory must date new posts with
var Clock = time.Date(2025, time.February, 3, 10, 30, 0, 0, time.UTC)

// RepositoryFactory returns an empty repository dated by now and loaded with seed
type RepositoryFactory func(t *testing.T, now func() time.Time, seed []posts.Post) posts.Repository

// RunConformanceTests runs all conformance tests against a Repository implementation.
func RunConformanceTests(t *testing.T, factory RepositoryFactory) {
	tests := []struct {
		name   string
		seeded bool
		test   func(t *testing.T, repo posts.Repository)
	}{
		{"CreateOnEmptyStartsAtOne", false, testCreateOnEmpty},
		{"SeedOrderPreserved", true, testSeedOrder},
		{"NextIDAfterSeed", true, testNextIDAfterSeed},
		{"CreatedPostListedFirst", true, testCreatedFirst},
		{"UniqueIDs", false, testUniqueIDs},
		{"ConcurrentCreates", false, testConcurrentCreates},
		{"Get", true, testGet},
		{"UpdateReplacesFields", true, testUpdate},
		{"UpdateMissing", true, testUpdateMissing},
		{"Delete", true, testDelete},
		{"DeleteMissing", true, testDeleteMissing},
		{"IDsNotReused", true, testIDsNotReused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seed []posts.Post
			if tt.seeded {
				seed = posts.DefaultSeed()
			}
			repo := factory(t, func() time.Time { return Clock }, seed)
			tt.test(t, repo)
		})
	}
}

func fields(n int) posts.Fields {
	return posts.Fields{
		Title:   fmt.Sprintf("Title %d", n),
		Excerpt: fmt.Sprintf("Excerpt %d", n),
		Content: fmt.Sprintf("Content %d", n),
		Author:  fmt.Sprintf("Author %d", n),
		Image:   fmt.Sprintf("https://example.com/%d.jpg", n),
	}
}

func ids(list []posts.Post) []int64 {
	out := make([]int64, len(list))
	for i, p := range list {
		out[i] = p.ID
	}
	return out
}

func mustList(t *testing.T, repo posts.Repository) []posts.Post {
	t.Helper()
	list, err := repo.List(context.Background())
	require.NoError(t, err)
	return list
}

func testCreateOnEmpty(t *testing.T, repo posts.Repository) {
	ctx := context.Background()
	assert.Empty(t, mustList(t, repo))

	p, err := repo.Create(ctx, fields(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, Clock.Format(posts.DateLayout), p.Date)
	assert.Equal(t, fields(1), p.Fields())

	assert.Equal(t, []posts.Post{p}, mustList(t, repo))
}

func testSeedOrder(t *testing.T, repo posts.Repository) {
	assert.Equal(t, posts.DefaultSeed(), mustList(t, repo))
}

func testNextIDAfterSeed(t *testing.T, repo posts.Repository) {
	p, err := repo.Create(context.Background(), fields(4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.ID)
}

func testCreatedFirst(t *testing.T, repo posts.Repository) {
	ctx := context.Background()
	a, err := repo.Create(ctx, fields(1))
	require.NoError(t, err)
	b, err := repo.Create(ctx, fields(2))
	require.NoError(t, err)

	assert.Equal(t, []int64{b.ID, a.ID, 1, 2, 3}, ids(mustList(t, repo)))
}

func testUniqueIDs(t *testing.T, repo posts.Repository) {
	ctx := context.Background()
	seen := make(map[int64]bool)
	for i := 0; i < 25; i++ {
		p, err := repo.Create(ctx, fields(i))
		require.NoError(t, err)
		assert.False(t, seen[p.ID], "id %d handed out twice", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, mustList(t, repo), 25)
}

func testConcurrentCreates(t *testing.T, repo posts.Repository) {
	const workers, each = 8, 5
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]int)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				p, err := repo.Create(ctx, fields(w*each+i))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[p.ID]++
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, seen, workers*each)
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %d", id)
	}
	assert.Len(t, mustList(t, repo), workers*each)
}

func testGet(t *testing.T, repo posts.Repository) {
	ctx := context.Background()
	p, err := repo.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, posts.DefaultSeed()[1], p)

	_, err = repo.Get(ctx, 99)
	assert.ErrorIs(t, err, posts.ErrNotFound)
}

func testUpdate(t *testing.T, repo posts.Repository) {
	ctx := context.Background()
	before := mustList(t, repo)

	updated, err := repo.Update(ctx, 2, fields(7))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.ID)
	assert.Equal(t, before[1].Date, updated.Date, "date is fixed at creation")
	assert.Equal(t, fields(7), updated.Fields())

	after := mustList(t, repo)
	assert.Equal(t, ids(before), ids(after), "update keeps position")
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, updated, after[1])
	assert.Equal(t, before[2], after[2])

	// Wholesale replace: empty fields overwrite
	cleared, err := repo.Update(ctx, 2, posts.Fields{})
	require.NoError(t, err)
	assert.Equal(t, posts.Fields{}, cleared.Fields())
}

func testUpdateMissing(t *testing.T, repo posts.Repository) {
	_, err := repo.Update(context.Background(), 42, fields(1))
	assert.ErrorIs(t, err, posts.ErrNotFound)
	assert.Equal(t, posts.DefaultSeed(), mustList(t, repo))
}

func testDelete(t *testing.T, repo posts.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.Delete(ctx, 2))

	assert.Equal(t, []int64{1, 3}, ids(mustList(t, repo)))
	_, err := repo.Get(ctx, 2)
	assert.ErrorIs(t, err, posts.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 2), posts.ErrNotFound)
}

func testDeleteMissing(t *testing.T, repo posts.Repository) {
	assert.ErrorIs(t, repo.Delete(context.Background(), 42), posts.ErrNotFound)
	assert.Equal(t, posts.DefaultSeed(), mustList(t, repo))
}

func testIDsNotReused(t *testing.T, repo posts.Repository) {
	ctx := context.Background()
	p, err := repo.Create(ctx, fields(4))
	require.NoError(t, err)
	require.Equal(t, int64(4), p.ID)

	require.NoError(t, repo.Delete(ctx, p.ID))
	require.NoError(t, repo.Delete(ctx, 3))

	next, err := repo.Create(ctx, fields(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), next.ID)
	for _, got := range mustList(t, repo) {
		assert.NotEqual(t, int64(3), got.ID)
		assert.NotEqual(t, int64(4), got.ID)
	}
}
