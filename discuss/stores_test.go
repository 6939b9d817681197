package discuss_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nasermirzaei89/folio/discuss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{comments: testComments()}

	stores, err := discuss.NewStores(api, allowAll{}, time.Minute)
	require.NoError(t, err)

	t.Cleanup(stores.Close)

	ctx := asUser("alice")

	s1, err := stores.Open(ctx, "session-1", "p1")
	require.NoError(t, err)

	again, err := stores.Open(ctx, "session-1", "p1")
	require.NoError(t, err)
	assert.Same(t, s1, again)

	other, err := stores.Open(ctx, "session-2", "p1")
	require.NoError(t, err)
	assert.NotSame(t, s1, other)

	assert.Equal(t, []string{"list p1", "list p1"}, api.Calls())

	_, err = s1.SaveEdit(ctx, "a", "only here")
	require.NoError(t, err)

	a, _, _ := discuss.Find(other.Comments(), "a")
	assert.Equal(t, "first", a.Content)

	refreshed, err := stores.Refresh(ctx, "session-1", "p1")
	require.NoError(t, err)
	assert.Same(t, s1, refreshed)
	assert.Equal(t, []string{"list p1", "list p1", "list p1"}, api.Calls())

	stores.Forget("session-1", "p1")

	reopened, err := stores.Open(ctx, "session-1", "p1")
	require.NoError(t, err)
	assert.NotSame(t, s1, reopened)
}

func TestStores_OpenError(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{listErr: assert.AnError}

	stores, err := discuss.NewStores(api, allowAll{}, 0)
	require.NoError(t, err)

	t.Cleanup(stores.Close)

	_, err = stores.Open(context.Background(), "session-1", "p1")
	require.ErrorIs(t, err, assert.AnError)
}

func TestStores_ConcurrentOpen(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{comments: testComments(), listDelay: 50 * time.Millisecond}

	stores, err := discuss.NewStores(api, allowAll{}, time.Minute)
	require.NoError(t, err)

	t.Cleanup(stores.Close)

	const n = 8

	opened := make([]*discuss.Store, n)

	var wg sync.WaitGroup

	for i := range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s, err := stores.Open(asUser("alice"), "session-1", "p1")
			assert.NoError(t, err)

			opened[i] = s
		}()
	}

	wg.Wait()

	for _, s := range opened {
		require.NotNil(t, s)
		assert.Same(t, opened[0], s)
	}

	assert.Equal(t, []string{"list p1"}, api.Calls())
}
