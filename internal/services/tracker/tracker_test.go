package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
	trackermocks "github.com/BearBump/AvailBox/internal/services/tracker/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestApply_NewAndExisting(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	existing := map[uint64]*models.StatusRecord{
		1: {EntityID: 1, LastChecked: earlier, ConsecutiveFailures: 3},
		2: {EntityID: 2, LastChecked: earlier, LastSuccess: &earlier, HasData: true, ConsecutiveFailures: 0},
	}

	recs := Apply(existing, []uint64{1, 3}, []uint64{2, 4}, now)
	require.Len(t, recs, 4)

	byID := map[uint64]*models.StatusRecord{}
	for _, r := range recs {
		byID[r.EntityID] = r
	}

	require.Equal(t, 0, byID[1].ConsecutiveFailures)
	require.True(t, byID[1].HasData)
	require.Equal(t, now, *byID[1].LastSuccess)

	require.Equal(t, 1, byID[2].ConsecutiveFailures)
	require.True(t, byID[2].HasData)
	require.Equal(t, earlier, *byID[2].LastSuccess)
	require.Equal(t, now, byID[2].LastChecked)

	require.True(t, byID[3].HasData)
	require.Equal(t, 0, byID[3].ConsecutiveFailures)

	require.False(t, byID[4].HasData)
	require.Nil(t, byID[4].LastSuccess)
	require.Equal(t, 1, byID[4].ConsecutiveFailures)

	// input records are not mutated
	require.Equal(t, 3, existing[1].ConsecutiveFailures)
}

func TestApply_DuplicateIDsCountOnce(t *testing.T) {
	now := time.Now().UTC()
	recs := Apply(nil, []uint64{5, 5}, []uint64{6, 6, 5}, now)
	require.Len(t, recs, 2)
	require.Equal(t, uint64(5), recs[0].EntityID)
	require.Equal(t, 1, recs[0].ConsecutiveFailures)
	require.Equal(t, 1, recs[1].ConsecutiveFailures)
}

func TestTracker_BulkUpdate(t *testing.T) {
	repo := &trackermocks.MockRepository{}
	tr := New(repo)
	now := time.Now().UTC()

	repo.On("GetStatuses", mock.Anything, []uint64{1, 2}).
		Return(map[uint64]*models.StatusRecord{2: {EntityID: 2, ConsecutiveFailures: 4}}, nil).Once()
	repo.On("UpsertStatuses", mock.Anything, mock.MatchedBy(func(recs []*models.StatusRecord) bool {
		return len(recs) == 2 &&
			recs[0].EntityID == 1 && recs[0].HasData &&
			recs[1].EntityID == 2 && recs[1].ConsecutiveFailures == 5
	})).Return(nil).Once()

	require.NoError(t, tr.BulkUpdate(context.Background(), []uint64{1}, []uint64{2}, now))
	repo.AssertExpectations(t)
}

func TestTracker_BulkUpdate_Empty(t *testing.T) {
	repo := &trackermocks.MockRepository{}
	require.NoError(t, New(repo).BulkUpdate(context.Background(), nil, nil, time.Now()))
	repo.AssertNotCalled(t, "GetStatuses", mock.Anything, mock.Anything)
}

func TestTracker_MarkFailure_RepoError(t *testing.T) {
	repo := &trackermocks.MockRepository{}
	repo.On("GetStatuses", mock.Anything, []uint64{9}).Return(nil, errors.New("boom")).Once()

	err := New(repo).MarkFailure(context.Background(), 9, time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "get statuses")
}
