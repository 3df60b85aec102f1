package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/extract"
	"github.com/JonMunkholm/roster/internal/history"
)

// multipartOverhead is the body allowance on top of the file size for
// multipart boundaries and headers.
const multipartOverhead = 64 << 10

// maxFormMemory is how much of a multipart body is kept in memory before
// parts are written to disk.
const maxFormMemory = 1 << 20

var (
	errNoFile    = errors.New("no file provided")
	errEmptyFile = errors.New("empty file")
)

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// envelope is the part of a result a handler needs to pick the status.
type envelope interface {
	OK() bool
}

// extractFunc runs one extraction on an uploaded file.
type extractFunc func(ctx context.Context, fileName string, r io.Reader) (envelope, string, error)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleParseEnrollment extracts students from an uploaded .xlsx, .xls or
// .docx file.
func (s *Server) handleParseEnrollment(w http.ResponseWriter, r *http.Request) {
	s.handleParse(w, r, func(ctx context.Context, name string, f io.Reader) (envelope, string, error) {
		res, err := s.service.ExtractEnrollment(ctx, name, f)
		return res, res.Message, err
	})
}

// handleParseTimetable extracts timetable tables from an uploaded .docx file.
func (s *Server) handleParseTimetable(w http.ResponseWriter, r *http.Request) {
	s.handleParse(w, r, func(ctx context.Context, name string, f io.Reader) (envelope, string, error) {
		res, err := s.service.ExtractTimetable(ctx, name, f)
		return res, res.Message, err
	})
}

// handleParse reads the "file" form field and passes it to run. Error
// envelopes are returned with 400 and their catalogue code in
// X-Error-Code. Request and host faults go through respondError.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request, run extractFunc) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer file.Close()
	defer r.MultipartForm.RemoveAll()

	ctx := WithRequestMetadata(r.Context(), r)
	res, message, err := run(ctx, header.Filename, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if !res.OK() {
		w.Header().Set("X-Error-Code", core.MapMessage(message).Code)
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// formFile returns the uploaded "file" part. The body is capped at the
// configured file size plus multipart overhead.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, nil, core.ErrFileTooLarge
		}
		return nil, nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		return nil, nil, errNoFile
	}

	switch {
	case header.Size > maxSize:
		file.Close()
		return nil, nil, core.ErrFileTooLarge
	case header.Size == 0:
		file.Close()
		return nil, nil, errEmptyFile
	}
	return file, header, nil
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrTooManyExtractions):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &mbe):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleHistory returns recent extraction log entries, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.ClampLimit(parseIntParam(r, "limit", history.DefaultLimit))

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

// handleStatus returns the extraction limiter snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

// parseIntParam parses an integer query parameter, returning defaultVal
// when it is missing or malformed.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

var (
	_ envelope = extract.EnrollmentResult{}
	_ envelope = extract.TimetableResult{}
)
