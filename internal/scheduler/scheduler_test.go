package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-training-api/internal/service"
)

func setupRedisLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), mr
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	locker, mr := setupRedisLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "progress", time.Minute)
	require.NoError(t, err)
	require.True(t, mr.Exists(lockPrefix+"progress"))

	_, err = locker.Acquire(ctx, "progress", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	release()
	require.False(t, mr.Exists(lockPrefix+"progress"))

	release, err = locker.Acquire(ctx, "progress", time.Minute)
	require.NoError(t, err)
	release()
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	locker, mr := setupRedisLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "certificates", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(lockPrefix+"certificates"))

	second, err := locker.Acquire(ctx, "certificates", time.Minute)
	require.NoError(t, err)

	release()
	require.True(t, mr.Exists(lockPrefix+"certificates"))
	second()
}

func TestLocalLockerExpiresLease(t *testing.T) {
	locker := NewLocalLocker().(*localLocker)
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	release, err := locker.Acquire(context.Background(), "progress", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), "progress", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	now = now.Add(2 * time.Minute)
	second, err := locker.Acquire(context.Background(), "progress", time.Minute)
	require.NoError(t, err)

	release()
	_, err = locker.Acquire(context.Background(), "progress", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)
	second()
}

func TestSchedulerRunOnceReturnsReport(t *testing.T) {
	locker, _ := setupRedisLocker(t)
	s := New(locker, time.Minute, zerolog.Nop())

	require.NoError(t, s.Register(Job{Name: "progress", Run: func(ctx context.Context) (interface{}, error) {
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		return map[string]int{"courses": 2}, nil
	}}))

	report, err := s.RunOnce(context.Background(), "progress")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"courses": 2}, report)

	_, err = s.RunOnce(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUnknownJob)
}

func TestSchedulerRejectsOverlappingRuns(t *testing.T) {
	locker, _ := setupRedisLocker(t)
	s := New(locker, time.Minute, zerolog.Nop())

	started := make(chan struct{})
	finish := make(chan struct{})
	require.NoError(t, s.Register(Job{Name: "certificates", Run: func(ctx context.Context) (interface{}, error) {
		close(started)
		<-finish
		return nil, nil
	}}))

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background(), "certificates")
		done <- err
	}()
	<-started

	_, err := s.RunOnce(context.Background(), "certificates")
	require.ErrorIs(t, err, ErrLockHeld)

	close(finish)
	require.NoError(t, <-done)

	_, err = s.RunOnce(context.Background(), "certificates")
	require.NoError(t, err)
}

func TestSchedulerPropagatesJobError(t *testing.T) {
	s := New(nil, time.Minute, zerolog.Nop())
	boom := errors.New("boom")
	require.NoError(t, s.Register(Job{Name: "progress", Run: func(context.Context) (interface{}, error) {
		return nil, boom
	}}))

	_, err := s.RunOnce(context.Background(), "progress")
	require.ErrorIs(t, err, boom)

	_, err = s.RunOnce(context.Background(), "progress")
	require.ErrorIs(t, err, boom)
}

func TestSchedulerRegisterValidation(t *testing.T) {
	s := New(nil, time.Minute, zerolog.Nop())
	noop := func(context.Context) (interface{}, error) { return nil, nil }

	require.Error(t, s.Register(Job{Name: "", Run: noop}))
	require.Error(t, s.Register(Job{Name: "bad", Spec: "not a cron", Run: noop}))
	require.NoError(t, s.Register(Job{Name: "progress", Spec: "@every 1m", Run: noop}))
	require.Error(t, s.Register(Job{Name: "progress", Run: noop}))
}

func TestSchedulerRunsOnSchedule(t *testing.T) {
	s := New(nil, time.Minute, zerolog.Nop())
	var runs atomic.Int32
	require.NoError(t, s.Register(Job{Name: "progress", Spec: "@every 1s", Run: func(context.Context) (interface{}, error) {
		runs.Add(1)
		return nil, nil
	}}))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

type stubProgressSweeper struct{ runs int }

func (s *stubProgressSweeper) RunSweep(context.Context) (service.SweepReport, error) {
	s.runs++
	return service.SweepReport{Courses: service.SweepCounts{Scanned: 1, Updated: 1}}, nil
}

type stubExpirySweeper struct{ runs int }

func (s *stubExpirySweeper) CheckAndNotifyExpiringCertificates(context.Context) (service.ExpirationReport, error) {
	s.runs++
	return service.ExpirationReport{Scanned: 3, Expired: 1}, nil
}

func TestRegisterSweepsWiresBothJobs(t *testing.T) {
	s := New(nil, time.Minute, zerolog.Nop())
	progress := &stubProgressSweeper{}
	expiry := &stubExpirySweeper{}
	require.NoError(t, s.RegisterSweeps("@every 15m", "@every 24h", progress, expiry))

	report, err := s.RunOnce(context.Background(), JobProgressSweep)
	require.NoError(t, err)
	require.Equal(t, 1, report.(service.SweepReport).Courses.Updated)

	report, err = s.RunOnce(context.Background(), JobCertificateSweep)
	require.NoError(t, err)
	require.Equal(t, 1, report.(service.ExpirationReport).Expired)

	require.Equal(t, 1, progress.runs)
	require.Equal(t, 1, expiry.runs)
	require.Len(t, s.cron.Entries(), 2)
}
