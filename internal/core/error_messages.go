// Package core provides the extraction service behind the HTTP API.
//
// # Error Codes Reference
//
// This file maps technical errors and extraction messages to user-facing
// messages with codes for support reference. Codes are grouped by
// category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Action: Remove unused sheets or images, or split the file
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Unreadable file: The file could not be read
//	          Action: Open the file, re-save it in its original format and upload again
//	          Patterns: "error parsing"
//
//	FILE004 - No file: No file was uploaded
//	          Action: Attach the file in the "file" form field
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Upload a file that contains a table
//	          Patterns: "empty file"
//
//	FILE006 - Unsupported type: This file type is not supported
//	          Action: Upload enrollment lists as .xlsx, .xls or .docx and timetables as .docx
//	          Patterns: "unsupported file type"
//
// # Extraction Errors (EXT001-EXT099)
//
//	EXT001 - No students: No student rows were found in the file
//	         Action: Make sure the first row holds column headers and later rows hold students
//	         Patterns: "no valid student data"
//
//	EXT002 - No timetable: No timetable tables were found in the document
//	         Action: Make sure the timetable is a Word table whose first row holds headers
//	         Patterns: "no valid timetable data"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many files are being processed
//	         Action: Please wait a moment and try again
//	         Patterns: "too many extractions"
//
//	UPL004 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	UPL005 - Request timeout: Request timed out
//	         Action: Try a smaller file or check your connection
//	         Patterns: "context deadline exceeded"
//
// # Extraction Log Errors (HIST001-HIST099)
//
//	HIST001 - Log unavailable: The extraction log could not be read
//	          Action: Please try again in a few moments
//	          Patterns: "extraction_log", "connection refused"
//
// # Access Errors (AUTH001, RATE001)
//
//	AUTH001 - Unauthorized: A valid API key is required
//	          Action: Send the key in the X-API-Key header
//	          Patterns: "api key"
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones. When a
// user reports ERR000, the original error is in the application log under
// the same request id.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered: the first matching pattern wins.
var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused sheets or images, or split the file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused sheets or images, or split the file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload enrollment lists as .xlsx, .xls or .docx and timetables as .docx",
			Code:    "FILE006",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was uploaded",
			Action:  `Attach the file in the "file" form field`,
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file that contains a table",
			Code:    "FILE005",
		},
	},

	// Extraction outcomes
	{
		pattern: "no valid student data",
		msg: UserMessage{
			Message: "No student rows were found in the file",
			Action:  "Make sure the first row holds column headers and later rows hold students",
			Code:    "EXT001",
		},
	},
	{
		pattern: "no valid timetable data",
		msg: UserMessage{
			Message: "No timetable tables were found in the document",
			Action:  "Make sure the timetable is a Word table whose first row holds headers",
			Code:    "EXT002",
		},
	},
	{
		pattern: "error parsing",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Open the file, re-save it in its original format and upload again",
			Code:    "FILE002",
		},
	},

	// Upload errors
	{
		pattern: "too many extractions",
		msg: UserMessage{
			Message: "Too many files are being processed",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// Extraction log
	{
		pattern: "extraction_log",
		msg: UserMessage{
			Message: "The extraction log could not be read",
			Action:  "Please try again in a few moments",
			Code:    "HIST001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The extraction log could not be read",
			Action:  "Please try again in a few moments",
			Code:    "HIST001",
		},
	},

	// Access
	{
		pattern: "api key",
		msg: UserMessage{
			Message: "A valid API key is required",
			Action:  "Send the key in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A
// wrapped *UserError keeps its message. Unknown errors map to ERR000; a
// nil error maps to the zero UserMessage.
//
//	msg := MapError(errors.New("Unsupported file type: .csv"))
//	// msg.Code == "FILE006"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}
	return MapMessage(err.Error())
}

// MapMessage maps the message of an extraction error result.
func MapMessage(msg string) UserMessage {
	if msg == "" {
		return UserMessage{}
	}

	lower := strings.ToLower(msg)
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with the message
// shown to users.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
