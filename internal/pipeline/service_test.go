package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/wandern-app/echo-archiver/pkg/arweave"
	"github.com/wandern-app/echo-archiver/pkg/config"
	"github.com/wandern-app/echo-archiver/pkg/db/models"
	"github.com/wandern-app/echo-archiver/pkg/logger"
	"github.com/wandern-app/echo-archiver/pkg/moderation"
)

type fakeStore struct {
	candidates []models.GeoEcho
	selectErr  error

	flagged  map[string]string
	uploaded map[string]string

	flagErr   error
	uploadErr error
}

func newFakeStore(candidates ...models.GeoEcho) *fakeStore {
	return &fakeStore{
		candidates: candidates,
		flagged:    map[string]string{},
		uploaded:   map[string]string{},
	}
}

func (f *fakeStore) SelectCandidates(_ context.Context, _ bool, _ int) ([]models.GeoEcho, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.candidates, nil
}

func (f *fakeStore) MarkFlagged(_ context.Context, echoID, reason string) error {
	if f.flagErr != nil {
		return f.flagErr
	}
	f.flagged[echoID] = reason
	return nil
}

func (f *fakeStore) MarkUploaded(_ context.Context, echoID, txID string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded[echoID] = txID
	return nil
}

type fakeModeration struct {
	verdicts map[string]moderation.Verdict
	calls    []moderation.CheckRequest
}

func (f *fakeModeration) CheckFailClosed(_ context.Context, req moderation.CheckRequest) moderation.Verdict {
	f.calls = append(f.calls, req)
	if v, ok := f.verdicts[req.Content]; ok {
		return v
	}
	return moderation.Verdict{IsSafe: true, Status: moderation.StatusApproved}
}

type fakeArweave struct {
	putErrs map[string]error
	puts    []UploadDocument
	tags    [][]arweave.Tag
}

func (f *fakeArweave) Put(_ context.Context, document any, tags []arweave.Tag) (string, error) {
	doc, ok := document.(UploadDocument)
	if !ok {
		return "", errors.New("unexpected document type")
	}
	f.puts = append(f.puts, doc)
	f.tags = append(f.tags, tags)
	if err, ok := f.putErrs[doc.Content]; ok && err != nil {
		return "", err
	}
	return "ar_tx_" + doc.Content, nil
}

func newTestService(t *testing.T, store *fakeStore, mod *fakeModeration, ar *fakeArweave) *Service {
	t.Helper()

	cfg := &config.Config{}
	cfg.Uploader.BatchSize = 50
	cfg.Arweave.AppID = "wandern"
	cfg.Arweave.AppName = "Wandern"

	logg := logger.New(logger.Options{ServiceName: "pipeline-test", Output: io.Discard})

	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		Store:      store,
		Moderation: mod,
		Arweave:    ar,
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func echoRecord(id, content string) models.GeoEcho {
	return models.GeoEcho{
		EchoID:        id,
		CreatorUserID: "user-1",
		Content:       content,
		ContentType:   "text",
		IsPermanent:   true,
		IsActive:      true,
		CreatedAt:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRunMixedOutcomesIsolatesFailures(t *testing.T) {
	store := newFakeStore(
		echoRecord("echo-a", "rejected content"),
		echoRecord("echo-b", "storage breaks"),
		echoRecord("echo-c", "clean content"),
	)
	mod := &fakeModeration{verdicts: map[string]moderation.Verdict{
		"rejected content": {IsSafe: false, Status: moderation.StatusFlagged, Reason: "policy violation"},
	}}
	ar := &fakeArweave{putErrs: map[string]error{
		"storage breaks": errors.New("bundler unavailable"),
	}}
	svc := newTestService(t, store, mod, ar)

	summary, err := svc.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Processed != 3 || summary.Uploaded != 1 || summary.Flagged != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Processed != summary.Uploaded+summary.Flagged+summary.Failed {
		t.Fatalf("summary counts do not reconcile: %+v", summary)
	}
	if len(summary.TxIDs) != 1 || summary.TxIDs[0] != "ar_tx_clean content" {
		t.Fatalf("unexpected tx ids %v", summary.TxIDs)
	}

	if reason, ok := store.flagged["echo-a"]; !ok || reason != "policy violation" {
		t.Fatalf("echo-a should be flagged with its reason, got %v", store.flagged)
	}
	if _, ok := store.uploaded["echo-b"]; ok {
		t.Fatal("echo-b must stay untouched after a storage failure")
	}
	if _, ok := store.flagged["echo-b"]; ok {
		t.Fatal("echo-b must not be flagged on a storage failure")
	}
	if txID, ok := store.uploaded["echo-c"]; !ok || txID != "ar_tx_clean content" {
		t.Fatalf("echo-c should be marked uploaded, got %v", store.uploaded)
	}
}

func TestRunFailClosedNeverUploadsUnverifiedContent(t *testing.T) {
	store := newFakeStore(echoRecord("echo-a", "unreachable agent"))
	mod := &fakeModeration{verdicts: map[string]moderation.Verdict{
		"unreachable agent": {
			IsSafe: false,
			Status: moderation.StatusError,
			Reason: "Moderation check failed: connection refused",
		},
	}}
	ar := &fakeArweave{}
	svc := newTestService(t, store, mod, ar)

	summary, err := svc.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Flagged != 1 {
		t.Fatalf("expected fail-closed flag, got %+v", summary)
	}
	if len(ar.puts) != 0 {
		t.Fatal("nothing may reach permanent storage without an affirmative verdict")
	}
	if reason := store.flagged["echo-a"]; reason != "Moderation check failed: connection refused" {
		t.Fatalf("unexpected stored reason %q", reason)
	}
}

func TestRunModerationContentFallsBackToTitle(t *testing.T) {
	title := "A quiet place"
	echo := echoRecord("echo-a", "")
	echo.Title = &title

	withContent := echoRecord("echo-b", "Hello")
	withContent.Title = &title

	store := newFakeStore(echo, withContent)
	mod := &fakeModeration{}
	ar := &fakeArweave{}
	svc := newTestService(t, store, mod, ar)

	if _, err := svc.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(mod.calls) != 2 {
		t.Fatalf("expected 2 moderation calls, got %d", len(mod.calls))
	}
	if mod.calls[0].Content != title {
		t.Fatalf("empty content should fall back to title, sent %q", mod.calls[0].Content)
	}
	if mod.calls[1].Content != "Hello" {
		t.Fatalf("content must win over title, sent %q", mod.calls[1].Content)
	}
}

func TestRunSkipModerationBypassesGate(t *testing.T) {
	store := newFakeStore(echoRecord("echo-a", "anything"))
	mod := &fakeModeration{verdicts: map[string]moderation.Verdict{
		"anything": {IsSafe: false, Status: moderation.StatusFlagged, Reason: "would flag"},
	}}
	ar := &fakeArweave{}
	svc := newTestService(t, store, mod, ar)

	summary, err := svc.Run(context.Background(), Options{SkipModeration: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(mod.calls) != 0 {
		t.Fatal("moderation must not be called when skipped")
	}
	if summary.Uploaded != 1 {
		t.Fatalf("expected upload, got %+v", summary)
	}
	if len(summary.ModerationResults) != 0 {
		t.Fatalf("moderation results must be empty when skipped, got %v", summary.ModerationResults)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, &fakeModeration{}, &fakeArweave{})

	summary, err := svc.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 0 || summary.Uploaded != 0 || summary.Flagged != 0 || summary.Failed != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestRunSetupFailureTouchesNothing(t *testing.T) {
	store := newFakeStore()
	store.selectErr = errors.New("connection refused")
	ar := &fakeArweave{}
	svc := newTestService(t, store, &fakeModeration{}, ar)

	if _, err := svc.Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected setup error")
	}
	if len(ar.puts) != 0 || len(store.flagged) != 0 || len(store.uploaded) != 0 {
		t.Fatal("setup failure must not touch any echo")
	}
}

func TestRunAtMostOneTerminalTransitionPerEcho(t *testing.T) {
	store := newFakeStore(
		echoRecord("echo-a", "rejected content"),
		echoRecord("echo-b", "clean content"),
	)
	mod := &fakeModeration{verdicts: map[string]moderation.Verdict{
		"rejected content": {IsSafe: false, Status: moderation.StatusFlagged, Reason: "nope"},
	}}
	svc := newTestService(t, store, mod, &fakeArweave{})

	if _, err := svc.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for id := range store.flagged {
		if _, also := store.uploaded[id]; also {
			t.Fatalf("echo %s received both terminal transitions", id)
		}
	}
	for id := range store.uploaded {
		if _, also := store.flagged[id]; also {
			t.Fatalf("echo %s received both terminal transitions", id)
		}
	}
}

func TestRunMarkUploadedFailureCountsAsFailed(t *testing.T) {
	store := newFakeStore(echoRecord("echo-a", "clean content"))
	store.uploadErr = errors.New("db gone")
	svc := newTestService(t, store, &fakeModeration{}, &fakeArweave{})

	summary, err := svc.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Uploaded != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.TxIDs) != 0 {
		t.Fatalf("tx ids must only include durably recorded uploads, got %v", summary.TxIDs)
	}
}

func TestRunTestModeSkipsRecordStore(t *testing.T) {
	store := newFakeStore(echoRecord("echo-a", "must not be read"))
	store.selectErr = errors.New("db must not be touched in test mode")
	mod := &fakeModeration{}
	ar := &fakeArweave{}
	svc := newTestService(t, store, mod, ar)

	summary, err := svc.Run(context.Background(), Options{TestMode: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Mode != "test" {
		t.Fatalf("expected test mode marker, got %q", summary.Mode)
	}
	if summary.Processed != 1 || summary.Uploaded != 1 || summary.Failed != 0 || summary.Flagged != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.TxIDs) != 1 {
		t.Fatalf("expected one tx id, got %v", summary.TxIDs)
	}
	if len(store.uploaded) != 0 || len(store.flagged) != 0 {
		t.Fatal("test mode must not write to the record store")
	}
	if len(mod.calls) != 0 {
		t.Fatal("test mode exercises the upload path only")
	}
}

func TestRunAttachesVerdictsToSummary(t *testing.T) {
	store := newFakeStore(
		echoRecord("echo-a", "clean content"),
		echoRecord("echo-b", "rejected content"),
	)
	mod := &fakeModeration{verdicts: map[string]moderation.Verdict{
		"rejected content": {IsSafe: false, Status: moderation.StatusFlagged, Reason: "nope"},
	}}
	svc := newTestService(t, store, mod, &fakeArweave{})

	summary, err := svc.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(summary.ModerationResults) != 2 {
		t.Fatalf("expected a verdict per echo, got %v", summary.ModerationResults)
	}
	if summary.ModerationResults[0].EchoID != "echo-a" || !summary.ModerationResults[0].IsSafe {
		t.Fatalf("unexpected first verdict %+v", summary.ModerationResults[0])
	}
	if summary.ModerationResults[1].EchoID != "echo-b" || summary.ModerationResults[1].IsSafe {
		t.Fatalf("unexpected second verdict %+v", summary.ModerationResults[1])
	}
}
