package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wandern-app/echo-archiver/internal/pipeline"
	pkgerrors "github.com/wandern-app/echo-archiver/pkg/errors"
	"github.com/wandern-app/echo-archiver/pkg/logger"
	"github.com/wandern-app/echo-archiver/pkg/types"
)

type stubRunner struct {
	opts    pipeline.Options
	summary *pipeline.Summary
	err     error
}

func (s *stubRunner) Run(_ context.Context, opts pipeline.Options) (*pipeline.Summary, error) {
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "handlers-test", Output: io.Discard})
}

func TestRunUploadsReturnsSummary(t *testing.T) {
	runner := &stubRunner{summary: &pipeline.Summary{
		Processed: 2,
		Uploaded:  2,
		TxIDs:     []string{"ar_a", "ar_b"},
	}}
	handler := RunUploads(runner, testLogger())

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/v1/uploads/run", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body pipeline.Summary
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if body.Processed != 2 || len(body.TxIDs) != 2 {
		t.Fatalf("unexpected summary %+v", body)
	}
}

func TestRunUploadsParsesFlags(t *testing.T) {
	runner := &stubRunner{summary: &pipeline.Summary{}}
	handler := RunUploads(runner, testLogger())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/uploads/run?priority_only=true&test_mode=1&skip_moderation=false", nil)
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !runner.opts.PriorityOnly || !runner.opts.TestMode || runner.opts.SkipModeration {
		t.Fatalf("unexpected options %+v", runner.opts)
	}
}

func TestRunUploadsRejectsBadFlag(t *testing.T) {
	runner := &stubRunner{summary: &pipeline.Summary{}}
	handler := RunUploads(runner, testLogger())

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/v1/uploads/run?test_mode=maybe", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
}

func TestRunUploadsReportsRunFailure(t *testing.T) {
	runner := &stubRunner{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "selecting upload candidates")}
	handler := RunUploads(runner, testLogger())

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/v1/uploads/run", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
