package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-training-api/internal/seed"
)

type stubFixtureLoader struct {
	calls int
}

func (s *stubFixtureLoader) Load(ctx context.Context, data []byte) (seed.Summary, error) {
	s.calls++
	return seed.Summary{Users: 2}, nil
}

func TestSeedServiceTokenGuard(t *testing.T) {
	loader := &stubFixtureLoader{}
	svc := NewSeedService(loader, true, "secret", testLogger())

	_, err := svc.Load(context.Background(), "wrong", []byte(`{}`))
	require.ErrorIs(t, err, ErrSeedUnauthorized)
	require.Zero(t, loader.calls)

	summary, err := svc.Load(context.Background(), " secret ", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Users)
	require.Equal(t, 1, loader.calls)
}

func TestSeedServiceDisabled(t *testing.T) {
	loader := &stubFixtureLoader{}
	svc := NewSeedService(loader, false, "secret", testLogger())

	_, err := svc.Load(context.Background(), "secret", []byte(`{}`))
	require.ErrorIs(t, err, ErrSeedDisabled)

	svc = NewSeedService(loader, true, "", testLogger())
	_, err = svc.Load(context.Background(), "", []byte(`{}`))
	require.ErrorIs(t, err, ErrSeedUnauthorized)
	require.Zero(t, loader.calls)
}
