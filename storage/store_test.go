package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises any Store implementation
func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()
	userID := uuid.New().String()

	t.Run("project lifecycle", func(t *testing.T) {
		p := &Project{UserID: userID, Name: "Etude", SongURL: "/uploads/abc_etude.wav"}
		require.NoError(t, store.CreateProject(ctx, p))
		require.NotEmpty(t, p.ID)
		assert.Equal(t, 1.0, p.ZoomFactor)

		got, err := store.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Etude", got.Name)
		assert.Equal(t, userID, got.UserID)
		assert.Nil(t, got.LoopStart)

		start, end := 4.5, 9.0
		require.NoError(t, store.UpdateProjectView(ctx, p.ID, ProjectView{
			SeekerPosition: 12.25,
			ZoomFactor:     2,
			LoopStart:      &start,
			LoopEnd:        &end,
		}))

		got, err = store.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 12.25, got.SeekerPosition)
		assert.Equal(t, 2.0, got.ZoomFactor)
		require.NotNil(t, got.LoopStart)
		require.NotNil(t, got.LoopEnd)
		assert.Equal(t, 4.5, *got.LoopStart)
		assert.Equal(t, 9.0, *got.LoopEnd)

		list, err := store.ListProjects(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, p.ID, list[0].ID)

		require.NoError(t, store.DeleteProject(ctx, p.ID))
		_, err = store.GetProject(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.DeleteProject(ctx, p.ID), ErrNotFound)
	})

	t.Run("markers", func(t *testing.T) {
		p := &Project{UserID: userID, Name: "Nocturne", SongURL: "/uploads/x.mp3"}
		require.NoError(t, store.CreateProject(ctx, p))

		late := &Marker{ProjectID: p.ID, Timestamp: 30, Note: "bridge"}
		early := &Marker{ID: uuid.New().String(), ProjectID: p.ID, Timestamp: 12.5}
		require.NoError(t, store.CreateMarker(ctx, late))
		require.NoError(t, store.CreateMarker(ctx, early))
		require.NotEmpty(t, late.ID)

		markers, err := store.ListMarkers(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, markers, 2)
		assert.Equal(t, early.ID, markers[0].ID)
		assert.Equal(t, late.ID, markers[1].ID)

		early.Note = "hello"
		require.NoError(t, store.UpdateMarker(ctx, early))
		markers, err = store.ListMarkers(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", markers[0].Note)
		assert.Equal(t, 12.5, markers[0].Timestamp)

		require.NoError(t, store.DeleteMarker(ctx, late.ID))
		assert.ErrorIs(t, store.DeleteMarker(ctx, late.ID), ErrNotFound)

		missing := &Marker{ID: uuid.New().String(), Note: "x"}
		assert.ErrorIs(t, store.UpdateMarker(ctx, missing), ErrNotFound)

		orphan := &Marker{ProjectID: uuid.New().String(), Timestamp: 1}
		assert.ErrorIs(t, store.CreateMarker(ctx, orphan), ErrNotFound)

		// deleting the project drops its markers
		require.NoError(t, store.DeleteProject(ctx, p.ID))
		markers, err = store.ListMarkers(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, markers)
	})

	t.Run("unknown ids", func(t *testing.T) {
		_, err := store.GetProject(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.UpdateProjectView(ctx, uuid.New().String(), ProjectView{ZoomFactor: 1}), ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestMemoryStoreListsAllUsersWithEmptyFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateProject(ctx, &Project{UserID: "a", Name: "one"}))
	require.NoError(t, store.CreateProject(ctx, &Project{UserID: "b", Name: "two"}))

	all, err := store.ListProjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := store.ListProjects(ctx, "a")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "one", mine[0].Name)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	defer store.Close()

	runStoreSuite(t, store)
}
