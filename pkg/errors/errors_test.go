package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "moderation agent unreachable")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped error to match cause")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	typed := New(CodeUnconfigured, "arweave wallet key missing")
	wrapped := fmt.Errorf("bootstrap: %w", typed)

	found := As(wrapped)
	if found == nil {
		t.Fatalf("expected typed error in chain")
	}
	if found.Code() != CodeUnconfigured {
		t.Fatalf("unexpected code %s", found.Code())
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(New(CodeUnconfigured, "no wallet")) {
		t.Fatalf("unconfigured dependency should not be retryable")
	}
	if !Retryable(New(CodeDependency, "timeout")) {
		t.Fatalf("dependency failure should be retryable")
	}
	if !Retryable(stdErrors.New("untyped")) {
		t.Fatalf("untyped errors default to retryable")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: timeout"), "upload failed")
	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}
}
