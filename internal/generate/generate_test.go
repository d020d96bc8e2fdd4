package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vigyl/internal/model"
	"github.com/sells-group/vigyl/internal/resilience"
	"github.com/sells-group/vigyl/internal/seed"
)

var testProfile = model.Profile{
	UserID:           "u1",
	CompanyName:      "Vigyl Test Co",
	Persona:          "sales",
	TargetIndustries: []string{"Fintech"},
}

func TestGenerateFull_InvalidProfileSkipsProvider(t *testing.T) {
	p := &mockProvider{}
	o := New(p, nil)

	_, err := o.GenerateFull(context.Background(), model.Profile{UserID: "u1"}, ModeForeground)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidProfile)
	p.AssertNotCalled(t, "GenerateFullIntelligence", mock.Anything, mock.Anything)
}

func TestGenerateFull_MergesAgainstSeed(t *testing.T) {
	p := &mockProvider{}
	p.On("GenerateFullIntelligence", mock.Anything, testProfile).Return(&model.Intelligence{
		Industries: []model.Industry{
			{ID: "made-up", Slug: "fintech", Name: "FinTech", HealthScore: 88, TrendDirection: model.TrendImproving},
			{Slug: "space", Name: "Space Tech", HealthScore: 99},
		},
		Signals: []model.Signal{{ID: "s1", Title: "Rates cut", Severity: 9}},
		Prospects: []model.Prospect{
			{CompanyName: "Northwind", VigylScore: 140, IndustryID: "Fintech"},
			{CompanyName: "  "},
			{CompanyName: "northwind"},
		},
	}, nil)

	o := New(p, nil)
	intel, err := o.GenerateFull(context.Background(), testProfile, ModeForeground)
	require.NoError(t, err)

	catalog := seed.Default()
	require.Len(t, intel.Industries, catalog.Len())
	fintech, ok := (&model.Snapshot{Industries: intel.Industries}).Industry("ind-fintech")
	require.True(t, ok)
	assert.Equal(t, 88, fintech.HealthScore)
	assert.Equal(t, "fintech", fintech.Slug)

	require.Len(t, intel.Signals, 1)
	assert.Equal(t, 5, intel.Signals[0].Severity)

	require.Len(t, intel.Prospects, 1, "blank and duplicate names dropped")
	assert.Equal(t, 100, intel.Prospects[0].VigylScore)
	assert.Equal(t, "ind-fintech", intel.Prospects[0].IndustryID)
	assert.NotEmpty(t, intel.Prospects[0].ID)
	p.AssertExpectations(t)
}

func TestGenerateFull_ForegroundError(t *testing.T) {
	p := &mockProvider{}
	cause := resilience.NewTransientError(errors.New("overloaded"), 529)
	p.On("GenerateFullIntelligence", mock.Anything, testProfile).Return(nil, cause)

	_, err := New(p, nil).GenerateFull(context.Background(), testProfile, ModeForeground)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.NotErrorIs(t, err, ErrBackgroundRefresh)
}

func TestGenerateFull_BackgroundError(t *testing.T) {
	p := &mockProvider{}
	cause := errors.New("quota exceeded")
	p.On("GenerateFullIntelligence", mock.Anything, testProfile).Return(nil, cause)

	_, err := New(p, nil).GenerateFull(context.Background(), testProfile, ModeBackground)
	assert.ErrorIs(t, err, ErrBackgroundRefresh)
	assert.ErrorIs(t, err, cause)
}

func TestGenerateFull_NilIntelligence(t *testing.T) {
	p := &mockProvider{}
	p.On("GenerateFullIntelligence", mock.Anything, testProfile).Return(nil, nil)

	_, err := New(p, nil).GenerateFull(context.Background(), testProfile, ModeForeground)
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	p := &mockProvider{}
	industry := model.Industry{ID: "ind-saas", Slug: "saas", Name: "SaaS"}
	existing := []model.Prospect{{ID: "p1", CompanyName: "Acme"}}
	p.On("ExpandProspects", mock.Anything, industry, testProfile, existing).Return([]model.Prospect{
		{CompanyName: "ACME"},
		{CompanyName: "Globex", VigylScore: 70},
	}, nil)

	out, added, err := New(p, nil).Expand(context.Background(), testProfile, industry, existing)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, out, 2)
	assert.Equal(t, "Globex", out[1].CompanyName)
	assert.Equal(t, "ind-saas", out[1].IndustryID)
	assert.Equal(t, model.StageResearching, out[1].PipelineStage)
}

func TestExpand_ProviderError(t *testing.T) {
	p := &mockProvider{}
	industry := model.Industry{ID: "ind-saas"}
	p.On("ExpandProspects", mock.Anything, industry, testProfile, mock.Anything).Return(nil, errors.New("boom"))

	_, _, err := New(p, nil).Expand(context.Background(), testProfile, industry, nil)
	assert.Error(t, err)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{model.Profile{}.Validate(), "Complete your company profile to generate intelligence."},
		{ErrImpactTotalFailure, "AI impact analysis could not be generated for any industry. Please try again."},
		{resilience.NewTransientError(errors.New("slow down"), 429), "The intelligence provider is rate limiting requests. Try again in a few minutes."},
		{errors.New("connection reset by peer"), "Couldn't reach the intelligence provider. Showing the most recent data."},
		{resilience.ErrCircuitOpen, "The intelligence provider is unavailable right now. Showing the most recent data."},
		{context.Canceled, "Generation was cancelled."},
		{errors.New("bad json"), "Intelligence generation failed. Showing the most recent data."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "foreground", ModeForeground.String())
	assert.Equal(t, "background", ModeBackground.String())
}
