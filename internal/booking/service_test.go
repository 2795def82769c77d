package booking

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
	"github.com/nekogravitycat/facility-booking-backend/internal/court"
	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/db/dbtest"
	"github.com/nekogravitycat/facility-booking-backend/internal/occupancy"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
	"github.com/nekogravitycat/facility-booking-backend/internal/user"
)

var testNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, q db.Querier, b *CourtBooking) error {
	args := m.Called(ctx, q, b)
	return args.Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, q db.Querier, id string) (*CourtBooking, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CourtBooking), args.Error(1)
}

func (m *mockRepository) GetForUpdate(ctx context.Context, q db.Querier, id string) (*CourtBooking, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CourtBooking), args.Error(1)
}

func (m *mockRepository) GetByLinkedSession(ctx context.Context, q db.Querier, sessionID string) (*CourtBooking, error) {
	args := m.Called(ctx, q, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CourtBooking), args.Error(1)
}

func (m *mockRepository) List(ctx context.Context, q db.Querier, filter Filter) ([]CourtBooking, int, error) {
	args := m.Called(ctx, q, filter)
	var bookings []CourtBooking
	if args.Get(0) != nil {
		bookings = args.Get(0).([]CourtBooking)
	}
	return bookings, args.Int(1), args.Error(2)
}

func (m *mockRepository) Update(ctx context.Context, q db.Querier, b *CourtBooking) error {
	args := m.Called(ctx, q, b)
	return args.Error(0)
}

func (m *mockRepository) Delete(ctx context.Context, q db.Querier, id string) error {
	args := m.Called(ctx, q, id)
	return args.Error(0)
}

// fakeCourts serves a single court.
type fakeCourts struct {
	court.Service
	court *court.Court
}

func (f *fakeCourts) Get(ctx context.Context, q db.Querier, id string) (*court.Court, error) {
	if f.court == nil || f.court.ID != id {
		return nil, court.ErrNotFound
	}
	return f.court, nil
}

// fakeUsers treats every user as active unless told otherwise.
type fakeUsers struct {
	user.Service
	inactive bool
}

func (f *fakeUsers) EnsureActive(ctx context.Context, q db.Querier, id string) error {
	if f.inactive {
		return user.ErrInactive
	}
	return nil
}

// fakeBilling records charge operations.
type fakeBilling struct {
	billing.Service
	opened    []billing.OpenChargeInput
	revised   []decimal.Decimal
	cancelled []string
	openErr   error
}

func (f *fakeBilling) OpenCharge(ctx context.Context, q db.Querier, in billing.OpenChargeInput) (*billing.Charge, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, in)
	return &billing.Charge{ID: "charge-1", TotalAmount: in.Amount}, nil
}

func (f *fakeBilling) ReviseOpenCharge(ctx context.Context, q db.Querier, refType billing.ReferenceType, refID string, amount decimal.Decimal, description string) error {
	f.revised = append(f.revised, amount)
	return nil
}

func (f *fakeBilling) CancelByReference(ctx context.Context, q db.Querier, refType billing.ReferenceType, refID string) error {
	f.cancelled = append(f.cancelled, refID)
	return nil
}

// stubGate admits every resource id without locking.
type stubGate struct{}

func (stubGate) LockActive(ctx context.Context, q db.Querier, resourceID string) error { return nil }

// stubSource reports a fixed overlap answer.
type stubSource struct {
	name    string
	overlap bool
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Overlapping(ctx context.Context, q db.Querier, resourceID string, iv interval.Interval, excludeID string) (bool, error) {
	return s.overlap, nil
}

func newTestDetector(overlap bool) *occupancy.Detector {
	d := occupancy.NewDetector()
	d.RegisterGate(occupancy.KindCourt, stubGate{})
	d.RegisterSource(occupancy.KindCourt, stubSource{name: "court_bookings", overlap: overlap})
	return d
}

func testCourt() *court.Court {
	return &court.Court{ID: "court-1", Name: "Court A", HourlyRate: decimal.NewFromInt(80), Status: court.StatusActive}
}

func newTestBookingService(repo Repository, detector *occupancy.Detector, billingSvc billing.Service) Service {
	return NewService(
		dbtest.Stub{},
		repo,
		detector,
		&fakeCourts{court: testCourt()},
		&fakeUsers{},
		billingSvc,
		clock.Fixed(testNow),
	)
}

func TestCreateBooking(t *testing.T) {
	repo := &mockRepository{}
	bills := &fakeBilling{}
	svc := newTestBookingService(repo, newTestDetector(false), bills)

	start := testNow.Add(24 * time.Hour)
	repo.On("Create", mock.Anything, nil, mock.MatchedBy(func(b *CourtBooking) bool {
		return b.Status == StatusPending && b.Price.Equal(decimal.NewFromInt(160))
	})).Run(func(args mock.Arguments) {
		args.Get(2).(*CourtBooking).ID = "booking-1"
	}).Return(nil)

	b, err := svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		CourtID: "court-1",
		Start:   start,
		End:     start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "booking-1", b.ID)

	require.Len(t, bills.opened, 1)
	assert.Equal(t, billing.RefCourtBooking, bills.opened[0].ReferenceType)
	assert.True(t, bills.opened[0].Amount.Equal(decimal.NewFromInt(160)))
	repo.AssertExpectations(t)
}

func TestCreateBookingConflict(t *testing.T) {
	repo := &mockRepository{}
	bills := &fakeBilling{}
	svc := newTestBookingService(repo, newTestDetector(true), bills)

	start := testNow.Add(24 * time.Hour)
	_, err := svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		CourtID: "court-1",
		Start:   start,
		End:     start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrScheduleConflict)
	assert.Empty(t, bills.opened)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBookingRejectsPastStart(t *testing.T) {
	svc := newTestBookingService(&mockRepository{}, newTestDetector(false), &fakeBilling{})

	start := testNow.Add(-time.Hour)
	_, err := svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		CourtID: "court-1",
		Start:   start,
		End:     start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrPastStart)
}

func TestCreateBookingRejectsInvalidRange(t *testing.T) {
	svc := newTestBookingService(&mockRepository{}, newTestDetector(false), &fakeBilling{})

	start := testNow.Add(24 * time.Hour)
	_, err := svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		CourtID: "court-1",
		Start:   start,
		End:     start,
	})
	assert.ErrorIs(t, err, interval.ErrInvalidRange)
}

func TestCreateBookingInactiveUser(t *testing.T) {
	repo := &mockRepository{}
	svc := NewService(
		dbtest.Stub{}, repo, newTestDetector(false),
		&fakeCourts{court: testCourt()}, &fakeUsers{inactive: true}, &fakeBilling{},
		clock.Fixed(testNow),
	)

	start := testNow.Add(24 * time.Hour)
	_, err := svc.Create(context.Background(), CreateRequest{
		UserID:  "user-1",
		CourtID: "court-1",
		Start:   start,
		End:     start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, user.ErrInactive)
}

func TestUpdateBookingReschedules(t *testing.T) {
	repo := &mockRepository{}
	bills := &fakeBilling{}
	svc := newTestBookingService(repo, newTestDetector(false), bills)

	origStart := testNow.Add(24 * time.Hour)
	iv, _ := interval.New(origStart, origStart.Add(time.Hour))
	existing := &CourtBooking{ID: "booking-1", UserID: "user-1", CourtID: "court-1", Interval: iv, Status: StatusPending, Price: decimal.NewFromInt(80)}

	repo.On("GetForUpdate", mock.Anything, nil, "booking-1").Return(existing, nil)
	repo.On("Update", mock.Anything, nil, mock.MatchedBy(func(b *CourtBooking) bool {
		return b.Price.Equal(decimal.NewFromInt(160))
	})).Return(nil)

	newEnd := origStart.Add(2 * time.Hour)
	b, err := svc.Update(context.Background(), "booking-1", UpdateRequest{End: &newEnd})
	require.NoError(t, err)
	assert.True(t, b.Price.Equal(decimal.NewFromInt(160)))
	require.Len(t, bills.revised, 1)
	assert.True(t, bills.revised[0].Equal(decimal.NewFromInt(160)))
}

func TestUpdateBookingRejectsConfirmed(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	start := testNow.Add(24 * time.Hour)
	iv, _ := interval.New(start, start.Add(time.Hour))
	repo.On("GetForUpdate", mock.Anything, nil, "booking-1").Return(&CourtBooking{ID: "booking-1", Interval: iv, Status: StatusConfirmed}, nil)

	_, err := svc.Update(context.Background(), "booking-1", UpdateRequest{})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelBooking(t *testing.T) {
	repo := &mockRepository{}
	bills := &fakeBilling{}
	svc := newTestBookingService(repo, newTestDetector(false), bills)

	repo.On("GetForUpdate", mock.Anything, nil, "booking-1").Return(&CourtBooking{ID: "booking-1", Status: StatusConfirmed}, nil)
	repo.On("Update", mock.Anything, nil, mock.MatchedBy(func(b *CourtBooking) bool {
		return b.Status == StatusCancelled
	})).Return(nil)

	require.NoError(t, svc.Cancel(context.Background(), "booking-1"))
	assert.Equal(t, []string{"booking-1"}, bills.cancelled)
}

func TestCancelBookingRejectsLinked(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	sessionID := "session-1"
	repo.On("GetForUpdate", mock.Anything, nil, "booking-1").Return(&CourtBooking{ID: "booking-1", Status: StatusPending, LinkedSessionID: &sessionID}, nil)

	err := svc.Cancel(context.Background(), "booking-1")
	assert.ErrorIs(t, err, ErrLinkedBooking)
}

func TestCancelBookingAlreadyCancelled(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	repo.On("GetForUpdate", mock.Anything, nil, "booking-1").Return(&CourtBooking{ID: "booking-1", Status: StatusCancelled}, nil)

	err := svc.Cancel(context.Background(), "booking-1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConfirmPaid(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	repo.On("GetForUpdate", mock.Anything, nil, "booking-1").Return(&CourtBooking{ID: "booking-1", Status: StatusPending}, nil)
	repo.On("Update", mock.Anything, nil, mock.MatchedBy(func(b *CourtBooking) bool {
		return b.Status == StatusConfirmed
	})).Return(nil)

	require.NoError(t, svc.ConfirmPaid(context.Background(), nil, "booking-1"))
	repo.AssertExpectations(t)
}

func TestConfirmPaidRejectsNonPending(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	repo.On("GetForUpdate", mock.Anything, nil, "booking-1").Return(&CourtBooking{ID: "booking-1", Status: StatusConfirmed}, nil)

	err := svc.ConfirmPaid(context.Background(), nil, "booking-1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSyncLinkedCreates(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	start := testNow.Add(24 * time.Hour)
	iv, _ := interval.New(start, start.Add(time.Hour))
	courtID := "court-1"

	repo.On("GetByLinkedSession", mock.Anything, nil, "session-1").Return(nil, ErrNotFound)
	repo.On("Create", mock.Anything, nil, mock.MatchedBy(func(b *CourtBooking) bool {
		return b.LinkedSessionID != nil && *b.LinkedSessionID == "session-1" && b.Status == StatusPending
	})).Return(nil)

	require.NoError(t, svc.SyncLinked(context.Background(), nil, "session-1", "user-1", &courtID, iv, false))
	repo.AssertExpectations(t)
}

func TestSyncLinkedMoves(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	start := testNow.Add(24 * time.Hour)
	iv, _ := interval.New(start, start.Add(time.Hour))
	courtID := "court-1"
	sessionID := "session-1"
	existing := &CourtBooking{ID: "booking-1", CourtID: "court-1", Status: StatusPending, LinkedSessionID: &sessionID}

	repo.On("GetByLinkedSession", mock.Anything, nil, "session-1").Return(existing, nil)
	repo.On("Update", mock.Anything, nil, mock.MatchedBy(func(b *CourtBooking) bool {
		return b.ID == "booking-1" && b.Interval.Start.Equal(iv.Start)
	})).Return(nil)

	require.NoError(t, svc.SyncLinked(context.Background(), nil, "session-1", "user-1", &courtID, iv, false))
	repo.AssertExpectations(t)
}

func TestSyncLinkedDetaches(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	sessionID := "session-1"
	existing := &CourtBooking{ID: "booking-1", Status: StatusPending, LinkedSessionID: &sessionID}
	repo.On("GetByLinkedSession", mock.Anything, nil, "session-1").Return(existing, nil)
	repo.On("Delete", mock.Anything, nil, "booking-1").Return(nil)

	start := testNow.Add(24 * time.Hour)
	iv, _ := interval.New(start, start.Add(time.Hour))
	require.NoError(t, svc.SyncLinked(context.Background(), nil, "session-1", "user-1", nil, iv, false))
	repo.AssertExpectations(t)
}

func TestCancelLinkedCancelsConfirmed(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestBookingService(repo, newTestDetector(false), &fakeBilling{})

	sessionID := "session-1"
	existing := &CourtBooking{ID: "booking-1", Status: StatusConfirmed, LinkedSessionID: &sessionID}
	repo.On("GetByLinkedSession", mock.Anything, nil, "session-1").Return(existing, nil)
	repo.On("Update", mock.Anything, nil, mock.MatchedBy(func(b *CourtBooking) bool {
		return b.Status == StatusCancelled
	})).Return(nil)

	require.NoError(t, svc.CancelLinked(context.Background(), nil, "session-1"))
	repo.AssertExpectations(t)
}

func TestCheckAvailability(t *testing.T) {
	svc := newTestBookingService(&mockRepository{}, newTestDetector(false), &fakeBilling{})

	start := testNow.Add(24 * time.Hour)
	available, err := svc.CheckAvailability(context.Background(), "court-1", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, available)

	busy := newTestBookingService(&mockRepository{}, newTestDetector(true), &fakeBilling{})
	available, err = busy.CheckAvailability(context.Background(), "court-1", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, available)
}
