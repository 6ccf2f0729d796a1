package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/wandern-app/echo-archiver/internal/pipeline"
	"github.com/wandern-app/echo-archiver/pkg/config"
	"github.com/wandern-app/echo-archiver/pkg/logger"
)

const (
	defaultPollInterval = 5 * time.Minute
	maxBackoff          = 30 * time.Minute
	jitterWindow        = 15 * time.Second
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type uploadRunner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Summary, error)
}

type ServiceParams struct {
	Config *config.Config
	Logger *logger.Logger
	Runner uploadRunner
	Lock   pipeline.Lock
}

// Service drives the upload pipeline on a fixed interval. One batch per
// tick; errors back the interval off instead of crashing the worker.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	runner       uploadRunner
	lock         pipeline.Lock
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Runner == nil {
		return nil, errors.New("pipeline runner is required")
	}

	lock := params.Lock
	if lock == nil {
		lock = pipeline.NoopLock{}
	}

	interval := params.Config.Uploader.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		runner:       params.Runner,
		lock:         lock,
		pollInterval: interval,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "uploader worker context canceled")
			return ctx.Err()
		default:
		}

		if err := s.runOnce(ctx); err != nil {
			s.logg.Error(ctx, "uploader run error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval
		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (s *Service) runOnce(ctx context.Context) error {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		s.logg.Info(ctx, "another instance holds the run lock, skipping tick")
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release run lock", err)
		}
	}()

	_, err = s.runner.Run(ctx, pipeline.Options{})
	return err
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
