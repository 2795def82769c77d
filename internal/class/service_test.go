package class

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/db/dbtest"
	"github.com/nekogravitycat/facility-booking-backend/internal/occupancy"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
	"github.com/nekogravitycat/facility-booking-backend/internal/user"
)

var testNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeUsers struct {
	user.Service
}

func (fakeUsers) EnsureActive(ctx context.Context, q db.Querier, id string) error { return nil }

type fakeBilling struct {
	billing.Service
	opened    []billing.OpenChargeInput
	cancelled []string
}

func (f *fakeBilling) OpenCharge(ctx context.Context, q db.Querier, in billing.OpenChargeInput) (*billing.Charge, error) {
	f.opened = append(f.opened, in)
	return &billing.Charge{ID: "charge-1", TotalAmount: in.Amount}, nil
}

func (f *fakeBilling) CancelByReference(ctx context.Context, q db.Querier, refType billing.ReferenceType, refID string) error {
	f.cancelled = append(f.cancelled, refID)
	return nil
}

type stubGate struct{}

func (stubGate) LockActive(ctx context.Context, q db.Querier, resourceID string) error { return nil }

// busySource conflicts only on the intervals whose start is listed.
type busySource struct {
	name string
	busy map[time.Time]bool
}

func (s *busySource) Name() string { return s.name }

func (s *busySource) Overlapping(ctx context.Context, q db.Querier, resourceID string, iv interval.Interval, excludeID string) (bool, error) {
	return s.busy[iv.Start], nil
}

func newTestDetector(courtBusy, instructorBusy map[time.Time]bool) *occupancy.Detector {
	d := occupancy.NewDetector()
	d.RegisterGate(occupancy.KindCourt, stubGate{})
	d.RegisterGate(occupancy.KindInstructor, stubGate{})
	d.RegisterSource(occupancy.KindCourt, &busySource{name: "court_bookings", busy: courtBusy})
	d.RegisterSource(occupancy.KindInstructor, &busySource{name: "personal_sessions", busy: instructorBusy})
	return d
}

func newTestClassService(repo Repository, detector *occupancy.Detector, bills *fakeBilling) Service {
	return NewService(
		dbtest.Stub{},
		repo,
		detector,
		fakeUsers{},
		bills,
		clock.Fixed(testNow),
		zerolog.Nop(),
	)
}

func testTemplate() *Template {
	return &Template{
		ID:           "tpl-1",
		Title:        "Evening drills",
		InstructorID: "instructor-1",
		CourtID:      "court-1",
		Weekday:      time.Monday,
		StartMin:     18 * 60,
		DurationMin:  60,
		Capacity:     8,
		UnitPrice:    decimal.NewFromInt(25),
		Active:       true,
	}
}

func scheduledOccurrence(remaining int) *Occurrence {
	start := testNow.Add(24 * time.Hour)
	iv, _ := interval.New(start, start.Add(time.Hour))
	return &Occurrence{
		ID:             "occ-1",
		TemplateID:     "tpl-1",
		InstructorID:   "instructor-1",
		CourtID:        "court-1",
		Interval:       iv,
		Capacity:       8,
		RemainingSlots: remaining,
		UnitPrice:      decimal.NewFromInt(25),
		Status:         OccurrenceScheduled,
	}
}

func TestExpandTemplateCreatesOccurrences(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), &fakeBilling{})

	repo.On("GetTemplate", mock.Anything, nil, "tpl-1").Return(testTemplate(), nil)
	repo.On("CreateOccurrence", mock.Anything, nil, mock.MatchedBy(func(o *Occurrence) bool {
		return o.TemplateID == "tpl-1" && o.RemainingSlots == 8 && o.Status == OccurrenceScheduled
	})).Return(nil)

	// June 2025 has five Mondays.
	result, err := svc.ExpandTemplate(context.Background(), "tpl-1",
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)
	assert.Equal(t, 0, result.Skipped)
	repo.AssertNumberOfCalls(t, "CreateOccurrence", 5)
}

func TestExpandTemplateSkipsConflicts(t *testing.T) {
	repo := &mockRepository{}
	busyStart := time.Date(2025, 6, 9, 18, 0, 0, 0, time.UTC)
	svc := newTestClassService(repo, newTestDetector(map[time.Time]bool{busyStart: true}, nil), &fakeBilling{})

	repo.On("GetTemplate", mock.Anything, nil, "tpl-1").Return(testTemplate(), nil)
	repo.On("CreateOccurrence", mock.Anything, nil, mock.Anything).Return(nil)

	result, err := svc.ExpandTemplate(context.Background(), "tpl-1",
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestExpandTemplateInstructorConflictSkips(t *testing.T) {
	repo := &mockRepository{}
	busyStart := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	svc := newTestClassService(repo, newTestDetector(nil, map[time.Time]bool{busyStart: true}), &fakeBilling{})

	repo.On("GetTemplate", mock.Anything, nil, "tpl-1").Return(testTemplate(), nil)
	repo.On("CreateOccurrence", mock.Anything, nil, mock.Anything).Return(nil)

	result, err := svc.ExpandTemplate(context.Background(), "tpl-1",
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestExpandTemplateRejectsInactive(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), &fakeBilling{})

	tpl := testTemplate()
	tpl.Active = false
	repo.On("GetTemplate", mock.Anything, nil, "tpl-1").Return(tpl, nil)

	_, err := svc.ExpandTemplate(context.Background(), "tpl-1", testNow, testNow.AddDate(0, 1, 0))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExpandTemplateRejectsInvertedRange(t *testing.T) {
	svc := newTestClassService(&mockRepository{}, newTestDetector(nil, nil), &fakeBilling{})

	_, err := svc.ExpandTemplate(context.Background(), "tpl-1", testNow, testNow.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestEnroll(t *testing.T) {
	repo := &mockRepository{}
	bills := &fakeBilling{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), bills)

	repo.On("GetOccurrenceForUpdate", mock.Anything, nil, "occ-1").Return(scheduledOccurrence(3), nil)
	repo.On("HasActiveEnrollment", mock.Anything, nil, "occ-1", "user-1").Return(false, nil)
	repo.On("CreateEnrollment", mock.Anything, nil, mock.MatchedBy(func(e *Enrollment) bool {
		return e.Status == EnrollmentConfirmed && e.Price.Equal(decimal.NewFromInt(25))
	})).Run(func(args mock.Arguments) {
		args.Get(2).(*Enrollment).ID = "enr-1"
	}).Return(nil)
	repo.On("UpdateOccurrence", mock.Anything, nil, mock.MatchedBy(func(o *Occurrence) bool {
		return o.RemainingSlots == 2
	})).Return(nil)

	enrollment, err := svc.Enroll(context.Background(), "occ-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "enr-1", enrollment.ID)

	require.Len(t, bills.opened, 1)
	assert.Equal(t, billing.RefEnrollment, bills.opened[0].ReferenceType)
	repo.AssertExpectations(t)
}

func TestEnrollFullClass(t *testing.T) {
	repo := &mockRepository{}
	bills := &fakeBilling{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), bills)

	repo.On("GetOccurrenceForUpdate", mock.Anything, nil, "occ-1").Return(scheduledOccurrence(0), nil)

	_, err := svc.Enroll(context.Background(), "occ-1", "user-1")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Empty(t, bills.opened)
	repo.AssertNotCalled(t, "CreateEnrollment", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrollTwice(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), &fakeBilling{})

	repo.On("GetOccurrenceForUpdate", mock.Anything, nil, "occ-1").Return(scheduledOccurrence(3), nil)
	repo.On("HasActiveEnrollment", mock.Anything, nil, "occ-1", "user-1").Return(true, nil)

	_, err := svc.Enroll(context.Background(), "occ-1", "user-1")
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestEnrollPastOccurrence(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), &fakeBilling{})

	o := scheduledOccurrence(3)
	iv, _ := interval.New(testNow.Add(-2*time.Hour), testNow.Add(-time.Hour))
	o.Interval = iv
	repo.On("GetOccurrenceForUpdate", mock.Anything, nil, "occ-1").Return(o, nil)

	_, err := svc.Enroll(context.Background(), "occ-1", "user-1")
	assert.ErrorIs(t, err, ErrOccurrencePast)
}

func TestEnrollCancelledOccurrence(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), &fakeBilling{})

	o := scheduledOccurrence(3)
	o.Status = OccurrenceCancelled
	repo.On("GetOccurrenceForUpdate", mock.Anything, nil, "occ-1").Return(o, nil)

	_, err := svc.Enroll(context.Background(), "occ-1", "user-1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelEnrollmentRestoresSlot(t *testing.T) {
	repo := &mockRepository{}
	bills := &fakeBilling{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), bills)

	repo.On("GetEnrollmentForUpdate", mock.Anything, nil, "enr-1").Return(&Enrollment{
		ID: "enr-1", OccurrenceID: "occ-1", UserID: "user-1", Status: EnrollmentConfirmed,
	}, nil)
	repo.On("UpdateEnrollment", mock.Anything, nil, mock.MatchedBy(func(e *Enrollment) bool {
		return e.Status == EnrollmentCancelled
	})).Return(nil)
	repo.On("GetOccurrenceForUpdate", mock.Anything, nil, "occ-1").Return(scheduledOccurrence(2), nil)
	repo.On("UpdateOccurrence", mock.Anything, nil, mock.MatchedBy(func(o *Occurrence) bool {
		return o.RemainingSlots == 3
	})).Return(nil)

	require.NoError(t, svc.CancelEnrollment(context.Background(), "enr-1"))
	assert.Equal(t, []string{"enr-1"}, bills.cancelled)
	repo.AssertExpectations(t)
}

func TestCancelEnrollmentRejectsCancelled(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), &fakeBilling{})

	repo.On("GetEnrollmentForUpdate", mock.Anything, nil, "enr-1").Return(&Enrollment{
		ID: "enr-1", Status: EnrollmentCancelled,
	}, nil)

	err := svc.CancelEnrollment(context.Background(), "enr-1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelOccurrenceCascades(t *testing.T) {
	repo := &mockRepository{}
	bills := &fakeBilling{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), bills)

	repo.On("GetOccurrenceForUpdate", mock.Anything, nil, "occ-1").Return(scheduledOccurrence(2), nil)
	repo.On("UpdateOccurrence", mock.Anything, nil, mock.MatchedBy(func(o *Occurrence) bool {
		return o.Status == OccurrenceCancelled
	})).Return(nil)
	repo.On("ListEnrollmentsByOccurrence", mock.Anything, nil, "occ-1").Return([]Enrollment{
		{ID: "enr-1", OccurrenceID: "occ-1", Status: EnrollmentConfirmed},
		{ID: "enr-2", OccurrenceID: "occ-1", Status: EnrollmentCancelled},
	}, nil)
	repo.On("UpdateEnrollment", mock.Anything, nil, mock.MatchedBy(func(e *Enrollment) bool {
		return e.ID == "enr-1" && e.Status == EnrollmentCancelled
	})).Return(nil)

	require.NoError(t, svc.CancelOccurrence(context.Background(), "occ-1"))
	assert.Equal(t, []string{"enr-1"}, bills.cancelled)
	repo.AssertExpectations(t)
}

func TestCompleteOccurrence(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), &fakeBilling{})

	repo.On("GetOccurrenceForUpdate", mock.Anything, nil, "occ-1").Return(scheduledOccurrence(2), nil)
	repo.On("UpdateOccurrence", mock.Anything, nil, mock.MatchedBy(func(o *Occurrence) bool {
		return o.Status == OccurrenceCompleted
	})).Return(nil)

	require.NoError(t, svc.CompleteOccurrence(context.Background(), "occ-1"))
}

func TestCreateTemplateValidation(t *testing.T) {
	svc := newTestClassService(&mockRepository{}, newTestDetector(nil, nil), &fakeBilling{})

	cases := []CreateTemplateRequest{
		{Weekday: 7, StartMin: 0, DurationMin: 60, Capacity: 5, UnitPrice: decimal.NewFromInt(20)},
		{Weekday: time.Monday, StartMin: -10, DurationMin: 60, Capacity: 5, UnitPrice: decimal.NewFromInt(20)},
		{Weekday: time.Monday, StartMin: 23 * 60, DurationMin: 120, Capacity: 5, UnitPrice: decimal.NewFromInt(20)},
		{Weekday: time.Monday, StartMin: 10 * 60, DurationMin: 60, Capacity: 0, UnitPrice: decimal.NewFromInt(20)},
		{Weekday: time.Monday, StartMin: 10 * 60, DurationMin: 60, Capacity: 5, UnitPrice: decimal.Zero},
	}
	for _, req := range cases {
		_, err := svc.CreateTemplate(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidTemplate)
	}
}

func TestConfirmPaidValidatesEnrollment(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestClassService(repo, newTestDetector(nil, nil), &fakeBilling{})

	repo.On("GetEnrollment", mock.Anything, nil, "enr-1").Return(&Enrollment{ID: "enr-1", Status: EnrollmentConfirmed}, nil)
	require.NoError(t, svc.ConfirmPaid(context.Background(), nil, "enr-1"))

	repo2 := &mockRepository{}
	svc2 := newTestClassService(repo2, newTestDetector(nil, nil), &fakeBilling{})
	repo2.On("GetEnrollment", mock.Anything, nil, "enr-1").Return(&Enrollment{ID: "enr-1", Status: EnrollmentCancelled}, nil)
	assert.ErrorIs(t, svc2.ConfirmPaid(context.Background(), nil, "enr-1"), ErrInvalidState)
}
