package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/AvailBox/internal/services/scheduler"
	schedulermocks "github.com/BearBump/AvailBox/internal/services/scheduler/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type SchedulerSuite struct {
	suite.Suite

	repo *schedulermocks.MockRepository
	sch  *scheduler.Scheduler
	now  time.Time
}

func (s *SchedulerSuite) SetupTest() {
	s.repo = &schedulermocks.MockRepository{}
	s.sch = scheduler.New(s.repo, scheduler.DefaultThresholds())
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SchedulerSuite) TestDueEntities_UnionDistinct() {
	s.repo.On("ListStaleAvailabilityEntities", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]uint64{3, 1}, nil).Once()
	s.repo.On("ListStatusCheckedBefore", mock.Anything, s.now.Add(-10080*time.Minute)).
		Return([]uint64{1, 7}, nil).Once()
	s.repo.On("ListUncheckedBookableEntities", mock.Anything).
		Return([]uint64{9}, nil).Once()

	sel, err := s.sch.DueEntities(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal([]uint64{1, 3, 7, 9}, sel.EntityIDs)
	s.Equal([]uint64{9}, sel.New)
	s.repo.AssertExpectations(s.T())
}

func (s *SchedulerSuite) TestDueEntities_PassesWindowAndTierCutoffs() {
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	s.repo.On("ListStaleAvailabilityEntities", mock.Anything, from, to, mock.MatchedBy(func(cs []scheduler.TierCutoff) bool {
		if len(cs) != 4 {
			return false
		}
		want := map[scheduler.Tier]time.Duration{
			scheduler.TierHigh: 30 * time.Minute, scheduler.TierMedium: 3 * time.Hour,
			scheduler.TierLow: 24 * time.Hour, scheduler.TierInactive: 7 * 24 * time.Hour,
		}
		for _, c := range cs {
			if !c.Before.Equal(s.now.Add(-want[c.Tier])) || len(c.Statuses) == 0 {
				return false
			}
		}
		return true
	})).Return([]uint64{}, nil).Once()
	s.repo.On("ListStatusCheckedBefore", mock.Anything, mock.Anything).Return([]uint64{}, nil).Once()
	s.repo.On("ListUncheckedBookableEntities", mock.Anything).Return([]uint64{}, nil).Once()

	sel, err := s.sch.DueEntities(context.Background(), s.now)
	s.Require().NoError(err)
	s.Empty(sel.EntityIDs)
	s.repo.AssertExpectations(s.T())
}

func (s *SchedulerSuite) TestDueEntities_NewlyDiscoveredOnly() {
	s.repo.On("ListStaleAvailabilityEntities", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).Once()
	s.repo.On("ListStatusCheckedBefore", mock.Anything, mock.Anything).Return(nil, nil).Once()
	s.repo.On("ListUncheckedBookableEntities", mock.Anything).Return([]uint64{3}, nil).Once()

	sel, err := s.sch.DueEntities(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal([]uint64{3}, sel.EntityIDs)
}

func (s *SchedulerSuite) TestDueEntities_RepoError() {
	s.repo.On("ListStaleAvailabilityEntities", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("db down")).Once()

	_, err := s.sch.DueEntities(context.Background(), s.now)
	s.Require().Error(err)
	s.Contains(err.Error(), "list stale availability")
	s.repo.AssertNotCalled(s.T(), "ListUncheckedBookableEntities", mock.Anything)
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}
