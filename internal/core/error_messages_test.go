package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "unsupported extension",
			err:         errors.New("Unsupported file type: .csv"),
			wantCode:    "FILE006",
			wantMessage: "This file type is not supported",
		},
		{
			name:        "oversized body",
			err:         errors.New("http: request body too large"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "no student data",
			err:         errors.New("No valid student data found in file"),
			wantCode:    "EXT001",
			wantMessage: "No student rows were found in the file",
		},
		{
			name:        "no timetable data",
			err:         errors.New("No valid timetable data found"),
			wantCode:    "EXT002",
			wantMessage: "No timetable tables were found in the document",
		},
		{
			name:        "corrupt enrollment file",
			err:         errors.New("Error parsing enrollment file: open workbook: zip: not a valid zip file"),
			wantCode:    "FILE002",
			wantMessage: "The file could not be read",
		},
		{
			name:        "corrupt timetable",
			err:         errors.New("Error parsing timetable: word/document.xml not found"),
			wantCode:    "FILE002",
			wantMessage: "The file could not be read",
		},
		{
			name:        "limiter saturated",
			err:         ErrTooManyExtractions,
			wantCode:    "UPL002",
			wantMessage: "Too many files are being processed",
		},
		{
			name:        "wrapped cancellation",
			err:         fmt.Errorf("spool upload: %w", context.Canceled),
			wantCode:    "UPL004",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "deadline",
			err:         context.DeadlineExceeded,
			wantCode:    "UPL005",
			wantMessage: "Request timed out",
		},
		{
			name:        "history query",
			err:         errors.New("query extraction_log: conn closed"),
			wantCode:    "HIST001",
			wantMessage: "The extraction log could not be read",
		},
		{
			name:        "rate limit",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("UNSUPPORTED FILE TYPE: .PDF"),
			wantCode:    "FILE006",
			wantMessage: "This file type is not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapMessage_Empty(t *testing.T) {
	if got := MapMessage(""); got != (UserMessage{}) {
		t.Errorf("MapMessage(\"\") = %+v, want zero value", got)
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(errors.New("No valid timetable data found"))

	expected := "No timetable tables were found in the document (Code: EXT002). Make sure the timetable is a Word table whose first row holds headers"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", errors.New("Unsupported file type: .txt"), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("acquire slot: %w", ErrTooManyExtractions)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Too many files are being processed" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrTooManyExtractions) {
			t.Error("Unwrap() should expose the original error")
		}
	})

	t.Run("does not double wrap", func(t *testing.T) {
		first := NewUserError(errors.New("rate limit exceeded"))
		again := NewUserError(fmt.Errorf("handler: %w", first))
		if again != first {
			t.Errorf("NewUserError() rewrapped an existing UserError")
		}
	})
}

func TestMapError_KeepsUserErrorMessage(t *testing.T) {
	ue := NewUserError(ErrTooManyExtractions)
	wrapped := fmt.Errorf("parse-timetable: %w", ue)

	if got := MapError(wrapped); got != ue.User {
		t.Errorf("MapError() = %+v, want %+v", got, ue.User)
	}
	if !IsUserFacing(wrapped) {
		t.Error("IsUserFacing() = false for a wrapped UserError")
	}
}
