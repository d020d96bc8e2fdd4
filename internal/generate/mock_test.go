package generate

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/vigyl/internal/model"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GenerateFullIntelligence(ctx context.Context, profile model.Profile) (*model.Intelligence, error) {
	args := m.Called(ctx, profile)
	if v := args.Get(0); v != nil {
		return v.(*model.Intelligence), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) GenerateAIImpactForIndustry(ctx context.Context, industry model.IndustryRef, profile model.Profile) (*model.AIImpactAnalysis, error) {
	args := m.Called(ctx, industry, profile)
	if v := args.Get(0); v != nil {
		return v.(*model.AIImpactAnalysis), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) ExpandProspects(ctx context.Context, industry model.Industry, profile model.Profile, existing []model.Prospect) ([]model.Prospect, error) {
	args := m.Called(ctx, industry, profile, existing)
	if v := args.Get(0); v != nil {
		return v.([]model.Prospect), args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingSink captures progress updates and every published accumulator.
type recordingSink struct {
	mu        sync.Mutex
	progress  []Progress
	published [][]model.AIImpactAnalysis
	onPublish func(n int)
	err       error
}

func (s *recordingSink) Progress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
}

func (s *recordingSink) Publish(_ context.Context, results []model.AIImpactAnalysis) error {
	s.mu.Lock()
	s.published = append(s.published, append([]model.AIImpactAnalysis(nil), results...))
	n := len(s.published)
	cb := s.onPublish
	s.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return s.err
}
