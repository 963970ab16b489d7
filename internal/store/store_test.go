package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notesjson/internal/apperr"
	"github.com/starford/notesjson/internal/models"
)

func testSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "notes-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, testSQLite(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

func ptr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ts := time.Date(2025, 9, 13, 10, 15, 30, 0, time.UTC)

		n, err := s.Create(ctx, models.NewNote{Title: "Shopping List", Content: "Milk, Bread, Eggs", Timestamp: ts})
		require.NoError(t, err)
		assert.NotEmpty(t, n.ID)
		assert.True(t, n.Timestamp.Equal(ts))

		got, err := s.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	})
}

func TestCreateKeepsTimestampAsGiven(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		stamps := []time.Time{
			{},
			time.Date(1500, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC),
			time.Date(2025, 9, 13, 12, 15, 30, 250, time.FixedZone("CEST", 2*3600)),
		}
		for _, ts := range stamps {
			n, err := s.Create(ctx, models.NewNote{Title: "t", Timestamp: ts})
			require.NoError(t, err)
			assert.True(t, n.Timestamp.Equal(ts), "create %v", ts)
			assert.Equal(t, time.UTC, n.Timestamp.Location())

			got, err := s.Get(ctx, n.ID)
			require.NoError(t, err)
			assert.True(t, got.Timestamp.Equal(ts), "get %v = %v", ts, got.Timestamp)
		}

		notes, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, notes, len(stamps))
		assert.Equal(t, 9999, notes[0].Timestamp.Year())
		assert.Equal(t, 3000, notes[1].Timestamp.Year())
		assert.Equal(t, 2025, notes[2].Timestamp.Year())
		assert.Equal(t, 1500, notes[3].Timestamp.Year())
		assert.True(t, notes[4].Timestamp.IsZero())
	})
}

func TestCreateRejectsBlankTitle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, title := range []string{"", "   ", "\n\t"} {
			_, err := s.Create(ctx, models.NewNote{Title: title})
			assert.ErrorIs(t, err, apperr.ErrValidation, "title %q", title)
		}
		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestCreateMintsUniqueIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			n, err := s.Create(ctx, models.NewNote{Title: "same"})
			require.NoError(t, err)
			assert.False(t, seen[n.ID], "duplicate id %s", n.ID)
			seen[n.ID] = true
		}
	})
}

func TestEmptyContentRoundTrips(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		n, err := s.Create(ctx, models.NewNote{Title: "bare"})
		require.NoError(t, err)

		got, err := s.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, "", got.Content)
		assert.False(t, got.HasContent())
	})
}

func TestUpdateKeepsIDAndBumpsTimestamp(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		n, err := s.Create(ctx, models.NewNote{Title: "v1", Content: "body", Timestamp: old})
		require.NoError(t, err)

		u, err := s.Update(ctx, n.ID, models.Patch{Title: ptr("v2")})
		require.NoError(t, err)
		assert.Equal(t, n.ID, u.ID)
		assert.Equal(t, "v2", u.Title)
		assert.Equal(t, "body", u.Content, "nil content must be left alone")
		assert.True(t, u.Timestamp.After(old))

		u2, err := s.Update(ctx, n.ID, models.Patch{Content: ptr("")})
		require.NoError(t, err)
		assert.Equal(t, n.ID, u2.ID)
		assert.Equal(t, "v2", u2.Title)
		assert.Equal(t, "", u2.Content)

		got, err := s.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, u2, got)
	})
}

func TestUpdateErrors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Update(ctx, "missing", models.Patch{Title: ptr("x")})
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		n, err := s.Create(ctx, models.NewNote{Title: "keep"})
		require.NoError(t, err)
		_, err = s.Update(ctx, n.ID, models.Patch{Title: ptr("  ")})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		got, err := s.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, "keep", got.Title, "failed update must not change the note")
		assert.True(t, got.Timestamp.Equal(n.Timestamp))
	})
}

func TestDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		n, err := s.Create(ctx, models.NewNote{Title: "bye"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, n.ID))
		_, err = s.Get(ctx, n.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, n.ID), apperr.ErrNotFound)
	})
}

func TestDeleteAll(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		removed, err := s.DeleteAll(ctx)
		require.NoError(t, err, "empty store must not fail")
		assert.Zero(t, removed)

		for _, title := range []string{"a", "b", "c"} {
			_, err := s.Create(ctx, models.NewNote{Title: title})
			require.NoError(t, err)
		}
		removed, err = s.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		notes, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, notes)
	})
}

func TestListOrdersNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Date(2025, 9, 13, 12, 0, 0, 0, time.UTC)
		for _, c := range []struct {
			title string
			ts    time.Time
		}{
			{"two hours ago", now.Add(-2 * time.Hour)},
			{"one hour ago", now.Add(-time.Hour)},
			{"now", now},
		} {
			_, err := s.Create(ctx, models.NewNote{Title: c.title, Timestamp: c.ts})
			require.NoError(t, err)
		}

		notes, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, notes, 3)
		assert.Equal(t, "now", notes[0].Title)
		assert.Equal(t, "one hour ago", notes[1].Title)
		assert.Equal(t, "two hours ago", notes[2].Title)
	})
}

func TestListNonIncreasingWithTies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		offsets := []int{3, 1, 3, 0, 2, 1, 3}
		for i, off := range offsets {
			_, err := s.Create(ctx, models.NewNote{
				Title:     string(rune('a' + i)),
				Timestamp: base.Add(time.Duration(off) * time.Minute),
			})
			require.NoError(t, err)
		}

		notes, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, notes, len(offsets))
		for i := 1; i < len(notes); i++ {
			assert.False(t, notes[i].Timestamp.After(notes[i-1].Timestamp), "list not ordered at %d", i)
		}
		// Ties keep insertion order: a, c, g share the newest timestamp.
		assert.Equal(t, []string{"a", "c", "g"}, []string{notes[0].Title, notes[1].Title, notes[2].Title})
	})
}

func TestListEmptyIsNotNil(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		notes, err := s.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, notes)
		assert.Empty(t, notes)
	})
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, _ = s.Create(ctx, models.NewNote{Title: "w"})
			}
		}()
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					notes, err := s.List(ctx)
					assert.NoError(t, err)
					for _, n := range notes {
						assert.NotEmpty(t, n.ID)
					}
				}
			}()
		}
		wg.Wait()

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 25, count)
	})
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	n, err := s.Create(context.Background(), models.NewNote{Title: "durable", Content: "yes"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestSQLiteSchemaCreation(t *testing.T) {
	s := testSQLite(t)
	var count int
	err := s.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count)
	require.NoError(t, err, "notes table missing")
}
