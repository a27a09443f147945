package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixmycity-be/errs"
	"fixmycity-be/models"
)

// steppingClock advances by step on every call.
type steppingClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

var baseTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type repoFactory func(t *testing.T, clock Clock) IssueRepository

func ptr[T any](v T) *T { return &v }

// runRepositoryContract exercises behaviour every backend must share.
func runRepositoryContract(t *testing.T, newRepo repoFactory) {
	ctx := context.Background()

	t.Run("InsertAssignsIncreasingIDs", func(t *testing.T) {
		repo := newRepo(t, nil)

		var last int64
		for i := 0; i < 5; i++ {
			id, err := repo.Insert(ctx, models.NewIssue{Category: "pothole", Description: "hole"})
			require.NoError(t, err)
			assert.Greater(t, id, last)
			last = id
		}
	})

	t.Run("InsertDefaultsAndListFields", func(t *testing.T) {
		clock := &steppingClock{t: baseTime, step: time.Second}
		repo := newRepo(t, clock.Now)

		id, err := repo.Insert(ctx, models.NewIssue{
			Category:    "pothole",
			Description: "large pothole on Main St",
			Latitude:    ptr(40.7),
			Longitude:   ptr(-74.0),
		})
		require.NoError(t, err)

		issues, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, issues, 1)

		got := issues[0]
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "pothole", got.Category)
		assert.Equal(t, "large pothole on Main St", got.Description)
		assert.Nil(t, got.ImagePath)
		require.NotNil(t, got.Latitude)
		require.NotNil(t, got.Longitude)
		assert.Equal(t, 40.7, *got.Latitude)
		assert.Equal(t, -74.0, *got.Longitude)
		assert.Equal(t, models.Pending, got.Status)
		assert.Equal(t, models.AnonymousEmail, got.UserEmail)
		assert.True(t, baseTime.Equal(got.CreatedAt), "created_at = %v", got.CreatedAt)
	})

	t.Run("InsertKeepsEmailAndImage", func(t *testing.T) {
		repo := newRepo(t, nil)

		id, err := repo.Insert(ctx, models.NewIssue{
			Category:    "graffiti",
			Description: "wall",
			ImagePath:   ptr("images/issue_1.jpg"),
			UserEmail:   "jo@example.org",
		})
		require.NoError(t, err)

		issues, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, issues, 1)
		assert.Equal(t, "jo@example.org", issues[0].UserEmail)
		require.NotNil(t, issues[0].ImagePath)
		assert.Equal(t, "images/issue_1.jpg", *issues[0].ImagePath)
		assert.Nil(t, issues[0].Latitude)
		assert.Nil(t, issues[0].Longitude)

		path, err := repo.GetImagePath(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "images/issue_1.jpg", path)
	})

	t.Run("InsertRejectsMissingFields", func(t *testing.T) {
		repo := newRepo(t, nil)

		cases := []models.NewIssue{
			{Description: "no category"},
			{Category: "pothole"},
			{Category: "   ", Description: "blank category"},
			{Category: "pothole", Description: "\t\n"},
		}
		for _, c := range cases {
			_, err := repo.Insert(ctx, c)
			assert.ErrorIs(t, err, errs.ErrValidation)
		}

		issues, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, issues)
	})

	t.Run("ListAllNewestFirst", func(t *testing.T) {
		clock := &steppingClock{t: baseTime, step: time.Minute}
		repo := newRepo(t, clock.Now)

		var ids []int64
		for _, d := range []string{"first", "second", "third"} {
			id, err := repo.Insert(ctx, models.NewIssue{Category: "c", Description: d})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		issues, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, issues, 3)
		assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{issues[0].ID, issues[1].ID, issues[2].ID})
		assert.Equal(t, "third", issues[0].Description)
	})

	t.Run("ListAllSameSecondTiesByID", func(t *testing.T) {
		clock := &steppingClock{t: baseTime, step: 0}
		repo := newRepo(t, clock.Now)

		var ids []int64
		for i := 0; i < 3; i++ {
			id, err := repo.Insert(ctx, models.NewIssue{Category: "c", Description: "d"})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		issues, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, issues, 3)
		assert.Equal(t, ids, []int64{issues[0].ID, issues[1].ID, issues[2].ID})
	})

	t.Run("ListAllEmpty", func(t *testing.T) {
		repo := newRepo(t, nil)

		issues, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, issues)
		assert.Empty(t, issues)
	})

	t.Run("GetImagePathNotFound", func(t *testing.T) {
		repo := newRepo(t, nil)

		id, err := repo.Insert(ctx, models.NewIssue{Category: "c", Description: "no image"})
		require.NoError(t, err)

		_, err = repo.GetImagePath(ctx, id)
		assert.ErrorIs(t, err, errs.ErrNotFound)

		_, err = repo.GetImagePath(ctx, id+1000)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("Ping", func(t *testing.T) {
		repo := newRepo(t, nil)
		assert.NoError(t, repo.Ping(ctx))
	})
}
