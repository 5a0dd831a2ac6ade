package apperrors

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorRetryableOnlyForTransientDependency(t *testing.T) {
	cases := []struct {
		err  *Error
		want bool
	}{
		{NewTransientDependencyError("llm", "timeout", nil), true},
		{NewInputError("ingest", "bad input", nil), false},
		{NewOntologyError("resolver", "unknown iri", nil), false},
		{NewSchemaError("proposer", "bad json", nil), false},
		{NewCancelledError("orchestrator", "cancelled", nil), false},
		{NewFatalError("stage", "panic", nil), false},
	}
	for _, c := range cases {
		if got := c.err.Retryable(); got != c.want {
			t.Errorf("%s.Retryable() = %v, want %v", c.err.Kind, got, c.want)
		}
	}
}

func TestErrorUnwrapReturnsWrappedError(t *testing.T) {
	inner := errors.New("connection refused")
	wrapped := NewTransientDependencyError("llm", "call failed", inner)
	if !errors.Is(wrapped, inner) {
		t.Fatalf("expected errors.Is to find the wrapped error")
	}
}

func TestErrorMessageIncludesStageKindAndMessage(t *testing.T) {
	err := NewOntologyError("resolver", "unresolved_iri", nil)
	msg := err.Error()
	for _, want := range []string{"resolver", "ontology_error", "unresolved_iri"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestAsDistinguishesAppErrors(t *testing.T) {
	appErr := NewFatalError("stage", "boom", nil)
	var wrapped error = appErr
	got, ok := As(wrapped)
	if !ok || got != appErr {
		t.Fatalf("As() = %v, %v; want the original *Error", got, ok)
	}

	_, ok = As(errors.New("plain error"))
	if ok {
		t.Fatal("expected As() to report false for a non-apperrors error")
	}
}
