package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
)

type fixedCounter struct {
	n   int
	err error
}

func (f *fixedCounter) Count(ctx context.Context) (int, error) {
	return f.n, f.err
}

type mockEnrollmentCounter struct {
	counts map[models.EnrollmentStatus]int
	err    error
}

func (m *mockEnrollmentCounter) CountByStatus(ctx context.Context, status models.EnrollmentStatus) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[status], nil
}

func TestDashboardServiceSummaryWithoutCache(t *testing.T) {
	enrollments := &mockEnrollmentCounter{counts: map[models.EnrollmentStatus]int{
		models.EnrollmentStatusPending:  2,
		models.EnrollmentStatusApproved: 5,
		models.EnrollmentStatusRejected: 1,
	}}
	svc := NewDashboardService(&fixedCounter{n: 10}, &fixedCounter{n: 3}, &fixedCounter{n: 4}, enrollments, nil, 0, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Students)
	assert.Equal(t, 3, summary.Teachers)
	assert.Equal(t, 4, summary.Sections)
	assert.Equal(t, 2, summary.PendingEnrollments)
	assert.Equal(t, 5, summary.ApprovedEnrollments)
	assert.Equal(t, 1, summary.RejectedEnrollments)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestDashboardServiceSummaryCountFailure(t *testing.T) {
	enrollments := &mockEnrollmentCounter{err: errors.New("db down")}
	svc := NewDashboardService(&fixedCounter{n: 10}, &fixedCounter{n: 3}, &fixedCounter{n: 4}, enrollments, nil, 0, nil)

	_, err := svc.Summary(context.Background())
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, appErrors.ErrInternal.Code, apiErr.Code)
}

func TestDashboardServiceInvalidateWithoutCache(t *testing.T) {
	svc := NewDashboardService(&fixedCounter{}, &fixedCounter{}, &fixedCounter{}, &mockEnrollmentCounter{}, nil, 0, nil)

	// No redis client configured, must be a safe no-op.
	svc.Invalidate(context.Background())
}
