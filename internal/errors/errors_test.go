package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPlotforgeError_Error(t *testing.T) {
	err := New(ErrCategoryStorage, CodeUploadFailed, "upload failed")
	expected := "[STORAGE:UPLOAD_FAILED] upload failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPlotforgeError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPlotforgeError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryCatalog, CodeWriteConflict, "conflict", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestPlotforgeError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeUploadFailed, "first")
	err2 := New(ErrCategoryStorage, CodeUploadFailed, "second")
	err3 := New(ErrCategoryStorage, CodeDownloadFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryCatalog, CodeWriteConflict, true},
		{ErrCategoryCatalog, CodeCorruptionDetected, false},
		{ErrCategoryRender, CodeRenderTimeout, true},
		{ErrCategoryRender, CodeRenderFailure, false},
		{ErrCategoryInsights, CodeInsightsRateLimited, true},
		{ErrCategoryInsights, CodeInsightsAuth, false},
		{ErrCategoryValidation, CodeUnknownColumn, false},
		{ErrCategoryConflict, CodeDuplicateChart, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryRender, CodeRenderFailure, "trace build failed")
	if GetCategory(err) != ErrCategoryRender {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryRender)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-PlotforgeError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryValidation, CodeUnknownColumn, "no such column")
	if GetCode(err) != CodeUnknownColumn {
		t.Errorf("got %q, want %q", GetCode(err), CodeUnknownColumn)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-PlotforgeError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryValidation, CodeUnknownColumn, "no such column")
	detailed := err.WithDetails(map[string]interface{}{"column": "revenue"})

	if detailed.Details["column"] != "revenue" {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	v := NewValidationError(CodeNoAxisSelected, "no x axis")
	if v.Category != ErrCategoryValidation || v.Code != CodeNoAxisSelected {
		t.Error("NewValidationError mismatch")
	}

	nf := NewNotFoundError(CodeSessionNotFound, "no such session")
	if nf.Category != ErrCategoryNotFound || nf.Code != CodeSessionNotFound {
		t.Error("NewNotFoundError mismatch")
	}

	cf := NewConflictError(CodeDuplicateChart, "already in library")
	if cf.Category != ErrCategoryConflict || cf.Code != CodeDuplicateChart {
		t.Error("NewConflictError mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	c := NewCatalogError(CodeWriteConflict, "locked", cause)
	if c.Category != ErrCategoryCatalog {
		t.Error("NewCatalogError mismatch")
	}

	r := NewRenderError(CodeRenderFailure, "empty trace", cause)
	if r.Category != ErrCategoryRender {
		t.Error("NewRenderError mismatch")
	}

	in := NewInsightsError(CodeInsightsUnavailable, "no api key", nil)
	if in.Category != ErrCategoryInsights {
		t.Error("NewInsightsError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
