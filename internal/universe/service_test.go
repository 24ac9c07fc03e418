package universe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

type fakeReference struct {
	instruments map[string][]contracts.Instrument
	calls       int
	err         error
}

func (f *fakeReference) FetchReference(_ context.Context, exchange string) ([]contracts.Instrument, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.instruments[exchange], nil
}

func referenceFixture() *fakeReference {
	return &fakeReference{instruments: map[string][]contracts.Instrument{
		"XNAS": {
			{Symbol: "AAPL", Exchange: "XNAS", Name: "Apple Inc.", FloatShares: 1e9, Segment: "stocks"},
			{Symbol: "NOFL", Exchange: "XNAS", Name: "No Float Corp", FloatShares: 0, Segment: "stocks"},
			{Symbol: "PINK", Exchange: "XNAS", Name: "Pink Sheet Co", FloatShares: 5e6, Segment: "otc"},
		},
		"XNYS": {
			{Symbol: "GE", Exchange: "XNYS", Name: "GE Aerospace", FloatShares: 1e9, Segment: "stocks"},
		},
	}}
}

func TestRefresh_AppliesExclusionRules(t *testing.T) {
	source := referenceFixture()
	svc := NewService(source, NewMemoryRepository(), []string{"XNAS", "XNYS"}, logger.Nop())

	universe, err := svc.Refresh(context.Background(), "2026-08-14")
	require.NoError(t, err)

	assert.Equal(t, 2, universe.Count())
	assert.True(t, universe.Contains("XNAS:AAPL"))
	assert.True(t, universe.Contains("XNYS:GE"))
	assert.Equal(t, ReasonNoFloat, universe.Excluded["XNAS:NOFL"])
	assert.Equal(t, ReasonOTC, universe.Excluded["XNAS:PINK"])
}

func TestCurrent_RefreshesOncePerSession(t *testing.T) {
	source := referenceFixture()
	svc := NewService(source, NewMemoryRepository(), []string{"XNAS"}, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Current(ctx, "2026-08-14")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, source.calls, "one reference fetch per session")

	// A new session date triggers one more refresh.
	_, err := svc.Current(ctx, "2026-08-17")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCurrent_ReloadsStoredUniverseAfterRestart(t *testing.T) {
	source := referenceFixture()
	repo := NewMemoryRepository()
	ctx := context.Background()

	first := NewService(source, repo, []string{"XNAS"}, logger.Nop())
	_, err := first.Refresh(ctx, "2026-08-14")
	require.NoError(t, err)

	// A fresh service mid-session reads the stored set instead of
	// re-fetching.
	second := NewService(source, repo, []string{"XNAS"}, logger.Nop())
	universe, err := second.Current(ctx, "2026-08-14")
	require.NoError(t, err)

	assert.True(t, universe.Contains("XNAS:AAPL"))
	assert.Equal(t, 1, source.calls, "restart must not re-fetch reference data")
}

func TestByDate_NeverRefreshes(t *testing.T) {
	source := referenceFixture()
	svc := NewService(source, NewMemoryRepository(), []string{"XNAS"}, logger.Nop())

	_, err := svc.ByDate(context.Background(), "2026-08-14")
	require.Error(t, err, "unstored historical universe must not trigger a fetch")
	assert.Equal(t, 0, source.calls)
}

func TestRefresh_PropagatesSourceFailure(t *testing.T) {
	source := &fakeReference{err: contracts.ErrUnavailable}
	svc := NewService(source, NewMemoryRepository(), []string{"XNAS"}, logger.Nop())

	_, err := svc.Refresh(context.Background(), "2026-08-14")
	require.ErrorIs(t, err, contracts.ErrUnavailable)
}
