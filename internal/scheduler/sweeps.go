package scheduler

import (
	"context"

	"github.com/noah-isme/gema-training-api/internal/service"
)

// ProgressSweeper re-derives schedule, class subject and course statuses.
type ProgressSweeper interface {
	RunSweep(ctx context.Context) (service.SweepReport, error)
}

// ExpirySweeper detects expiring and expired certificates.
type ExpirySweeper interface {
	CheckAndNotifyExpiringCertificates(ctx context.Context) (service.ExpirationReport, error)
}

// RegisterSweeps registers the progress and certificate sweeps on independent schedules.
func (s *Scheduler) RegisterSweeps(progressSpec, certificateSpec string, progress ProgressSweeper, certificates ExpirySweeper) error {
	if err := s.Register(Job{
		Name: JobProgressSweep,
		Spec: progressSpec,
		Run: func(ctx context.Context) (interface{}, error) {
			report, err := progress.RunSweep(ctx)
			return report, err
		},
	}); err != nil {
		return err
	}

	return s.Register(Job{
		Name: JobCertificateSweep,
		Spec: certificateSpec,
		Run: func(ctx context.Context) (interface{}, error) {
			report, err := certificates.CheckAndNotifyExpiringCertificates(ctx)
			return report, err
		},
	})
}
