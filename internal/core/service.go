package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/roster/internal/extract"
	"github.com/JonMunkholm/roster/internal/history"
	"github.com/JonMunkholm/roster/internal/logging"
)

// ErrFileTooLarge is returned when an upload exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// Options configures a Service.
type Options struct {
	// TempDir receives spooled uploads. Empty means os.TempDir().
	TempDir string

	// MaxFileSize caps the bytes read from an upload. Zero disables the cap.
	MaxFileSize int64
}

// Service runs extractions on uploaded files. Each upload is spooled to a
// uniquely named temp file that keeps the upload's extension, extracted
// while holding a limiter slot, removed, and logged to the history store.
type Service struct {
	limiter     *ExtractionLimiter
	history     history.Store
	tempDir     string
	maxFileSize int64
	now         func() time.Time
}

// NewService creates a Service. store may be nil to disable the extraction log.
func NewService(limiter *ExtractionLimiter, store history.Store, opts Options) *Service {
	if limiter == nil {
		limiter = NewExtractionLimiter(DefaultMaxConcurrentExtractions, DefaultMaxWaitTime)
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Service{
		limiter:     limiter,
		history:     store,
		tempDir:     tempDir,
		maxFileSize: opts.MaxFileSize,
		now:         time.Now,
	}
}

// summary is what the extraction log keeps of a result.
type summary struct {
	status  extract.Status
	message string
	records int
	tables  int
}

// ExtractEnrollment extracts student records from an uploaded file.
//
// Unsupported extensions, unreadable files and files without students all
// come back as an error envelope with a nil error. The returned error is
// reserved for failures outside the file itself: a saturated limiter,
// a cancelled request, an oversized upload or a temp file fault. It is a
// *UserError that unwraps to the cause.
func (s *Service) ExtractEnrollment(ctx context.Context, fileName string, r io.Reader) (extract.EnrollmentResult, error) {
	var res extract.EnrollmentResult
	err := s.process(ctx, extract.KindEnrollment, fileName, r,
		func(path string, format extract.Format) summary {
			res = extract.Enrollment(path, format)
			return summary{status: res.Status, message: res.Message, records: res.Count()}
		},
		func(msg string) summary {
			res = extract.FailedEnrollment(msg)
			return summary{status: res.Status, message: msg}
		},
	)
	if err != nil {
		return extract.EnrollmentResult{}, err
	}
	return res, nil
}

// ExtractTimetable extracts timetable tables from an uploaded .docx file.
// Errors follow the same split as ExtractEnrollment.
func (s *Service) ExtractTimetable(ctx context.Context, fileName string, r io.Reader) (extract.TimetableResult, error) {
	var res extract.TimetableResult
	err := s.process(ctx, extract.KindTimetable, fileName, r,
		func(path string, _ extract.Format) summary {
			res = extract.Timetable(path)
			return summary{status: res.Status, message: res.Message, records: res.RowCount(), tables: len(res.Data)}
		},
		func(msg string) summary {
			res = extract.FailedTimetable(msg)
			return summary{status: res.Status, message: msg}
		},
	)
	if err != nil {
		return extract.TimetableResult{}, err
	}
	return res, nil
}

// process resolves the format, then spools and extracts under a limiter
// slot. reject builds the result for an unsupported extension without
// reading the upload.
func (s *Service) process(
	ctx context.Context,
	kind extract.Kind,
	fileName string,
	r io.Reader,
	run func(path string, format extract.Format) summary,
	reject func(msg string) summary,
) error {
	start := s.now()
	entry := history.Entry{
		Kind:      string(kind),
		FileName:  displayName(fileName),
		IPAddress: ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	}
	logger := logging.WithFields(ctx, "kind", kind, "file", entry.FileName)

	format, err := extract.ResolvePath(kind, entry.FileName)
	if err != nil {
		if !errors.Is(err, extract.ErrUnsupportedFormat) {
			return NewUserError(err)
		}
		s.finish(ctx, logger, entry, reject(err.Error()), start)
		return nil
	}
	entry.Format = string(format)

	// The log keeps the technical error; callers get it mapped.
	fail := func(err error) error {
		s.finish(ctx, logger, entry, summary{status: extract.StatusError, message: err.Error()}, start)
		return NewUserError(err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return fail(err)
	}
	defer s.limiter.Release()

	tmp, err := s.spool(ctx, entry.FileName, r)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove temp file", "path", tmp, "error", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	s.finish(ctx, logger, entry, run(tmp, format), start)
	return nil
}

// spool copies the upload to a new temp file named after a random id and
// the upload's lower-cased extension.
func (s *Service) spool(ctx context.Context, fileName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	tmp := filepath.Join(s.tempDir, "roster-"+uuid.NewString()+ext)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	_, err = io.Copy(f, NewUploadReader(ctx, r, s.maxFileSize))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		if errors.Is(err, ErrFileTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("spool upload: %w", err)
	}
	return tmp, nil
}

// finish logs the outcome and appends it to the extraction log.
func (s *Service) finish(ctx context.Context, logger *slog.Logger, entry history.Entry, sum summary, start time.Time) {
	entry.Status = string(sum.status)
	entry.Message = sum.message
	entry.Records = sum.records
	entry.Tables = sum.tables
	entry.DurationMS = s.now().Sub(start).Milliseconds()

	if sum.status == extract.StatusSuccess {
		logger.Info("extraction completed",
			"format", entry.Format,
			"records", entry.Records,
			"tables", entry.Tables,
			"duration_ms", entry.DurationMS,
		)
	} else {
		logger.Info("extraction failed",
			"format", entry.Format,
			"message", entry.Message,
			"duration_ms", entry.DurationMS,
		)
	}

	if s.history == nil {
		return
	}
	// The log entry is written even when the request was cancelled.
	if err := s.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("failed to record extraction", "error", err)
	}
}

// History returns up to limit extraction log entries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return []history.Entry{}, nil
	}
	return s.history.Recent(ctx, limit)
}

// LimiterStatus returns a snapshot of the extraction limiter.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForDrain blocks until running extractions finish or ctx is done.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// displayName strips any client-side directory from an upload's name.
// Browsers on Windows may send full paths with backslashes.
func displayName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
