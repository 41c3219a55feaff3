package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConversationRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	conv, err := store.Begin(ctx, "hash-1", "demo")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)

	require.NoError(t, store.Append(ctx, conv.ID, "user", "what does main do?", false))
	require.NoError(t, store.Append(ctx, conv.ID, "assistant", "it starts the server", false))
	require.NoError(t, store.Append(ctx, conv.ID, "assistant", "partial notes", true))

	turns, err := store.Turns(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "what does main do?", turns[0].Content)
	assert.False(t, turns[1].Incomplete)
	assert.True(t, turns[2].Incomplete)

	got, err := store.Conversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.RepoName)
	assert.Equal(t, "hash-1", got.RepoHash)
}

func TestConversationsFilterByRepo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Begin(ctx, "hash-a", "alpha")
	require.NoError(t, err)
	_, err = store.Begin(ctx, "hash-b", "beta")
	require.NoError(t, err)
	_, err = store.Begin(ctx, "hash-a", "alpha")
	require.NoError(t, err)

	all, err := store.Conversations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyA, err := store.Conversations(ctx, "hash-a")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	for _, conv := range onlyA {
		assert.Equal(t, "alpha", conv.RepoName)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doomed, err := store.Begin(ctx, "hash-1", "demo")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, doomed.ID, "user", "hello", false))
	require.NoError(t, store.Append(ctx, doomed.ID, "assistant", "hi", false))

	kept, err := store.Begin(ctx, "hash-1", "demo")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, kept.ID, "user", "still here", false))

	require.NoError(t, store.Delete(ctx, doomed.ID))

	convs, err := store.Conversations(ctx, "")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, kept.ID, convs[0].ID)

	turns, err := store.Turns(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = store.Turns(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestDeleteConversationMissing(t *testing.T) {
	store := openTestStore(t)
	err := store.Delete(context.Background(), "no-such-id")
	assert.ErrorContains(t, err, "not found")
}

func TestConversationMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Conversation(context.Background(), "no-such-id")
	assert.Error(t, err)
}
