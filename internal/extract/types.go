package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies what an upload is expected to contain.
type Kind string

const (
	KindEnrollment Kind = "enrollment"
	KindTimetable  Kind = "timetable"
)

// Format is the container format of an uploaded file.
type Format string

const (
	FormatSpreadsheet       Format = "xlsx"
	FormatLegacySpreadsheet Format = "xls"
	FormatDocument          Format = "docx"
)

// Status tags an extraction result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var (
	// ErrUnsupportedFormat is matched by every UnsupportedFormatError.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	ErrNoStudentData   = errors.New("No valid student data found in file")
	ErrNoTimetableData = errors.New("No valid timetable data found")
)

// UnsupportedFormatError reports an extension that no extractor accepts.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return "Unsupported file type: " + e.Ext
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// ResolveFormat maps a file extension (with or without the leading dot,
// any case) to the format the given kind of extraction accepts.
func ResolveFormat(kind Kind, ext string) (Format, error) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	switch kind {
	case KindEnrollment:
		switch ext {
		case ".xlsx":
			return FormatSpreadsheet, nil
		case ".xls":
			return FormatLegacySpreadsheet, nil
		case ".docx":
			return FormatDocument, nil
		}
	case KindTimetable:
		if ext == ".docx" {
			return FormatDocument, nil
		}
	default:
		return "", fmt.Errorf("unknown extraction kind %q", kind)
	}

	return "", &UnsupportedFormatError{Ext: ext}
}

// ResolvePath resolves the format from a file name or path.
func ResolvePath(kind Kind, path string) (Format, error) {
	return ResolveFormat(kind, filepath.Ext(path))
}

// Table is one embedded document table and the records built from it.
type Table struct {
	Index   int       `json:"tableIndex"`
	Headers []string  `json:"headers"`
	Rows    []*Record `json:"rows"`
}

// EnrollmentData is the payload of a successful enrollment extraction.
type EnrollmentData struct {
	Students      []*Record `json:"students"`
	TotalStudents int       `json:"totalStudents"`
}

// EnrollmentResult is the envelope returned by enrollment extraction.
type EnrollmentResult struct {
	Status  Status          `json:"status"`
	Data    *EnrollmentData `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// OK reports whether the extraction succeeded.
func (r EnrollmentResult) OK() bool { return r.Status == StatusSuccess }

// Count returns the number of extracted students, zero on error.
func (r EnrollmentResult) Count() int {
	if r.Data == nil {
		return 0
	}
	return r.Data.TotalStudents
}

// TimetableResult is the envelope returned by timetable extraction.
type TimetableResult struct {
	Status  Status  `json:"status"`
	Data    []Table `json:"data,omitempty"`
	Message string  `json:"message,omitempty"`
}

// OK reports whether the extraction succeeded.
func (r TimetableResult) OK() bool { return r.Status == StatusSuccess }

// RowCount returns the number of records across all tables.
func (r TimetableResult) RowCount() int {
	n := 0
	for _, t := range r.Data {
		n += len(t.Rows)
	}
	return n
}

// FailedEnrollment returns an error envelope carrying msg.
func FailedEnrollment(msg string) EnrollmentResult {
	return EnrollmentResult{Status: StatusError, Message: msg}
}

// FailedTimetable returns an error envelope carrying msg.
func FailedTimetable(msg string) TimetableResult {
	return TimetableResult{Status: StatusError, Message: msg}
}
