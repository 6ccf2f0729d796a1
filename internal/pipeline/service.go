package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wandern-app/echo-archiver/internal/echoes"
	"github.com/wandern-app/echo-archiver/pkg/arweave"
	"github.com/wandern-app/echo-archiver/pkg/config"
	"github.com/wandern-app/echo-archiver/pkg/db/models"
	pkgerrors "github.com/wandern-app/echo-archiver/pkg/errors"
	"github.com/wandern-app/echo-archiver/pkg/logger"
	"github.com/wandern-app/echo-archiver/pkg/metrics"
	"github.com/wandern-app/echo-archiver/pkg/moderation"
)

// fallbackFlagReason is stored when the agent rejects without an explanation.
const fallbackFlagReason = "Pre-Arweave check failed"

type echoStore interface {
	SelectCandidates(ctx context.Context, priorityOnly bool, limit int) ([]models.GeoEcho, error)
	MarkFlagged(ctx context.Context, echoID, reason string) error
	MarkUploaded(ctx context.Context, echoID, txID string) error
}

type moderationGate interface {
	CheckFailClosed(ctx context.Context, req moderation.CheckRequest) moderation.Verdict
}

type permanentStore interface {
	Put(ctx context.Context, document any, tags []arweave.Tag) (string, error)
}

// ServiceParams configure the upload pipeline.
type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	Store      echoStore
	Moderation moderationGate
	Arweave    permanentStore
	Metrics    *metrics.PipelineMetrics
}

// Service runs the moderation-gated batch upload: select candidates, gate
// each one through the final moderation check, archive the approved ones, and
// record exactly one terminal transition per echo.
type Service struct {
	cfg        *config.Config
	logg       *logger.Logger
	store      echoStore
	moderation moderationGate
	arweave    permanentStore
	metrics    *metrics.PipelineMetrics
	batchSize  int
	now        func() time.Time
}

// NewService builds the pipeline service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Store == nil {
		return nil, errors.New("echo store is required")
	}
	if params.Moderation == nil {
		return nil, errors.New("moderation client is required")
	}
	if params.Arweave == nil {
		return nil, errors.New("arweave client is required")
	}

	batch := params.Config.Uploader.BatchSize
	if batch <= 0 {
		batch = echoes.DefaultBatchLimit
	}

	return &Service{
		cfg:        params.Config,
		logg:       params.Logger,
		store:      params.Store,
		moderation: params.Moderation,
		arweave:    params.Arweave,
		metrics:    params.Metrics,
		batchSize:  batch,
		now:        time.Now,
	}, nil
}

// Options select the behavior of a single run.
type Options struct {
	PriorityOnly bool
	TestMode     bool
	// SkipModeration bypasses the safety gate. Operator escape hatch for
	// testing only; must never be enabled for production traffic.
	SkipModeration bool
}

// ModerationResult is the per-echo verdict surfaced in the run summary.
type ModerationResult struct {
	EchoID string `json:"echo_id"`
	IsSafe bool   `json:"is_safe"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Summary is the structured outcome of one run. Processed always equals
// Uploaded + Flagged + Failed.
type Summary struct {
	Mode              string             `json:"mode,omitempty"`
	Processed         int                `json:"processed"`
	Uploaded          int                `json:"uploaded"`
	Failed            int                `json:"failed"`
	Flagged           int                `json:"flagged"`
	TxIDs             []string           `json:"tx_ids"`
	ModerationResults []ModerationResult `json:"moderation_results,omitempty"`
}

type outcome int

const (
	outcomeUploaded outcome = iota
	outcomeFlagged
	outcomeFailed
)

type echoResult struct {
	outcome outcome
	txID    string
	verdict *moderation.Verdict
}

// Run executes one batch. A setup failure (candidates cannot be selected at
// all) returns an error with no echo touched; every later failure stays
// scoped to its own echo.
func (s *Service) Run(ctx context.Context, opts Options) (*Summary, error) {
	start := s.now()
	ctx = s.logg.WithRunID(ctx, uuid.NewString())

	if opts.TestMode {
		summary := s.runTestMode(ctx)
		s.recordRun("test", start, summary)
		return summary, nil
	}

	candidates, err := s.store.SelectCandidates(ctx, opts.PriorityOnly, s.batchSize)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncRunFailure()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "selecting upload candidates")
	}

	summary := &Summary{TxIDs: []string{}}
	for _, echo := range candidates {
		echoCtx := s.logg.WithEchoID(ctx, echo.EchoID)
		result := s.processEcho(echoCtx, echo, opts.SkipModeration)

		summary.Processed++
		if result.verdict != nil {
			summary.ModerationResults = append(summary.ModerationResults, ModerationResult{
				EchoID: echo.EchoID,
				IsSafe: result.verdict.IsSafe,
				Status: result.verdict.Status,
				Reason: result.verdict.Reason,
			})
		}

		switch result.outcome {
		case outcomeUploaded:
			summary.Uploaded++
			summary.TxIDs = append(summary.TxIDs, result.txID)
		case outcomeFlagged:
			summary.Flagged++
		case outcomeFailed:
			summary.Failed++
		}
	}

	s.recordRun("batch", start, summary)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"processed": summary.Processed,
		"uploaded":  summary.Uploaded,
		"flagged":   summary.Flagged,
		"failed":    summary.Failed,
	})
	s.logg.Info(logCtx, "upload run complete")

	return summary, nil
}

// processEcho walks one echo through the state machine. Every failure path
// returns a typed outcome; nothing aborts the batch.
func (s *Service) processEcho(ctx context.Context, echo models.GeoEcho, skipModeration bool) echoResult {
	if !skipModeration {
		verdict := s.moderation.CheckFailClosed(ctx, buildCheckRequest(echo))
		if !verdict.IsSafe {
			return s.flagEcho(ctx, echo, verdict)
		}

		result := s.uploadEcho(ctx, echo)
		result.verdict = &verdict
		return result
	}

	return s.uploadEcho(ctx, echo)
}

func (s *Service) flagEcho(ctx context.Context, echo models.GeoEcho, verdict moderation.Verdict) echoResult {
	reason := verdict.Reason
	if reason == "" {
		reason = fallbackFlagReason
	}

	warnCtx := s.logg.WithField(ctx, "flag_reason", reason)
	s.logg.Warn(warnCtx, "echo blocked from permanent storage")

	if err := s.store.MarkFlagged(ctx, echo.EchoID, reason); err != nil {
		// No durable transition happened; the echo stays a candidate.
		s.logg.Error(ctx, "failed to mark echo flagged", err)
		return echoResult{outcome: outcomeFailed, verdict: &verdict}
	}
	return echoResult{outcome: outcomeFlagged, verdict: &verdict}
}

func (s *Service) uploadEcho(ctx context.Context, echo models.GeoEcho) echoResult {
	document := buildDocument(echo, s.cfg.Arweave.AppID)
	tags := buildTags(s.cfg.Arweave.AppName)

	txID, err := s.arweave.Put(ctx, document, tags)
	if err != nil {
		// Leave the echo untouched so the next run retries it.
		s.logg.Error(ctx, "arweave upload failed", err)
		return echoResult{outcome: outcomeFailed}
	}

	if err := s.store.MarkUploaded(ctx, echo.EchoID, txID); err != nil {
		// The upload happened but the transition did not persist. The next
		// run re-uploads the same bytes and lands on the same digest ID.
		s.logg.Error(ctx, "failed to record arweave tx id", err)
		return echoResult{outcome: outcomeFailed}
	}

	infoCtx := s.logg.WithField(ctx, "tx_id", txID)
	s.logg.Info(infoCtx, "echo archived to arweave")
	return echoResult{outcome: outcomeUploaded, txID: txID}
}

// runTestMode archives one synthetic echo without touching the record store,
// exercising only the upload path.
func (s *Service) runTestMode(ctx context.Context) *Summary {
	echo := models.GeoEcho{
		EchoID:        "test_echo_001",
		CreatorUserID: "test_user",
		Content:       "Test Geo Echo for Arweave upload",
		ContentType:   defaultContentType,
		CreatedAt:     s.now().UTC(),
	}

	summary := &Summary{Mode: "test", Processed: 1, TxIDs: []string{}}
	echoCtx := s.logg.WithEchoID(ctx, echo.EchoID)

	txID, err := s.arweave.Put(echoCtx, buildDocument(echo, s.cfg.Arweave.AppID), buildTags(s.cfg.Arweave.AppName))
	if err != nil {
		s.logg.Error(echoCtx, "test mode upload failed", err)
		summary.Failed++
		return summary
	}

	summary.Uploaded++
	summary.TxIDs = append(summary.TxIDs, txID)
	return summary
}

func (s *Service) recordRun(mode string, start time.Time, summary *Summary) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRun(mode, s.now().Sub(start))
	s.metrics.AddOutcomes(summary.Uploaded, summary.Flagged, summary.Failed)
	s.metrics.IncRunSuccess()
}
