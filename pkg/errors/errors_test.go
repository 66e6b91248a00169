package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		class     Class
	}{
		{code: CodeValidation, status: http.StatusBadRequest, class: ClassValidation},
		{code: CodeInvalidCheckout, status: http.StatusUnprocessableEntity, class: ClassValidation},
		{code: CodeCrossRestaurantItem, status: http.StatusConflict, class: ClassValidation},
		{code: CodeConflictingDiscount, status: http.StatusConflict, class: ClassValidation},
		{code: CodeInvalidCoupon, status: http.StatusBadRequest, class: ClassValidation},
		{code: CodeMissingCustomerRef, status: http.StatusBadRequest, class: ClassValidation},
		{code: CodeIllegalTransition, status: http.StatusUnprocessableEntity, class: ClassState},
		{code: CodeTransaction, status: http.StatusServiceUnavailable, retryable: true, class: ClassTransient},
		{code: CodePostCommit, status: http.StatusInternalServerError, class: ClassCritical},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, class: ClassAccess},
		{code: CodeForbidden, status: http.StatusForbidden, class: ClassAccess},
		{code: CodeConflict, status: http.StatusConflict, retryable: true, class: ClassState},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true, class: ClassInternal},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, class: ClassTransient},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.Class != tt.class {
			t.Fatalf("code %s expected class %s got %s", tt.code, tt.class, meta.Class)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeTransaction, cause, "insert order")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeTransaction {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeAndClassOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("checkout: %w", New(CodePostCommit, "loyalty settlement failed"))
	if !IsCode(err, CodePostCommit) {
		t.Fatalf("expected wrapped post-commit code to be detected")
	}
	if IsCode(err, CodeTransaction) {
		t.Fatalf("unexpected code match")
	}
	if got := ClassOf(err); got != ClassCritical {
		t.Fatalf("expected critical class, got %s", got)
	}
	if got := ClassOf(stdErrors.New("plain")); got != ClassInternal {
		t.Fatalf("untyped errors should be internal, got %s", got)
	}
}
