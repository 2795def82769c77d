package class

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateTemplate(ctx context.Context, q db.Querier, t *Template) error {
	args := m.Called(ctx, q, t)
	return args.Error(0)
}

func (m *mockRepository) GetTemplate(ctx context.Context, q db.Querier, id string) (*Template, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Template), args.Error(1)
}

func (m *mockRepository) ListTemplates(ctx context.Context, q db.Querier, activeOnly bool) ([]Template, error) {
	args := m.Called(ctx, q, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Template), args.Error(1)
}

func (m *mockRepository) SetTemplateActive(ctx context.Context, q db.Querier, id string, active bool) error {
	args := m.Called(ctx, q, id, active)
	return args.Error(0)
}

func (m *mockRepository) CreateOccurrence(ctx context.Context, q db.Querier, o *Occurrence) error {
	args := m.Called(ctx, q, o)
	return args.Error(0)
}

func (m *mockRepository) GetOccurrence(ctx context.Context, q db.Querier, id string) (*Occurrence, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Occurrence), args.Error(1)
}

func (m *mockRepository) GetOccurrenceForUpdate(ctx context.Context, q db.Querier, id string) (*Occurrence, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Occurrence), args.Error(1)
}

func (m *mockRepository) ListOccurrences(ctx context.Context, q db.Querier, filter OccurrenceFilter) ([]Occurrence, int, error) {
	args := m.Called(ctx, q, filter)
	var occurrences []Occurrence
	if args.Get(0) != nil {
		occurrences = args.Get(0).([]Occurrence)
	}
	return occurrences, args.Int(1), args.Error(2)
}

func (m *mockRepository) UpdateOccurrence(ctx context.Context, q db.Querier, o *Occurrence) error {
	args := m.Called(ctx, q, o)
	return args.Error(0)
}

func (m *mockRepository) CreateEnrollment(ctx context.Context, q db.Querier, e *Enrollment) error {
	args := m.Called(ctx, q, e)
	return args.Error(0)
}

func (m *mockRepository) GetEnrollment(ctx context.Context, q db.Querier, id string) (*Enrollment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Enrollment), args.Error(1)
}

func (m *mockRepository) GetEnrollmentForUpdate(ctx context.Context, q db.Querier, id string) (*Enrollment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Enrollment), args.Error(1)
}

func (m *mockRepository) ListEnrollmentsByOccurrence(ctx context.Context, q db.Querier, occurrenceID string) ([]Enrollment, error) {
	args := m.Called(ctx, q, occurrenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Enrollment), args.Error(1)
}

func (m *mockRepository) ListEnrollmentsByUser(ctx context.Context, q db.Querier, userID string) ([]Enrollment, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Enrollment), args.Error(1)
}

func (m *mockRepository) HasActiveEnrollment(ctx context.Context, q db.Querier, occurrenceID, userID string) (bool, error) {
	args := m.Called(ctx, q, occurrenceID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) UpdateEnrollment(ctx context.Context, q db.Querier, e *Enrollment) error {
	args := m.Called(ctx, q, e)
	return args.Error(0)
}
