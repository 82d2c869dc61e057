package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/zip-mapper/internal/boundary"
	"github.com/sells-group/zip-mapper/internal/model"
)

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, code, countryHint string) model.GeocodeResult {
	args := m.Called(ctx, code, countryHint)
	return args.Get(0).(model.GeocodeResult)
}

// --- BoundaryLoader Mock ---

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, regionID string) (*boundary.Dataset, error) {
	args := m.Called(ctx, regionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*boundary.Dataset), args.Error(1)
}
