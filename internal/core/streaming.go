package core

// streaming.go provides the reader uploads are spooled through.
//
// The upload body is streamed straight to the temp file, so the size cap
// and cancellation are enforced while copying rather than after the whole
// body has been buffered.

import (
	"context"
	"io"
)

// UploadReader wraps an upload body. It counts bytes, stops once ctx is
// done and fails with ErrFileTooLarge as soon as more than Limit bytes
// have been read.
type UploadReader struct {
	ctx    context.Context
	reader io.Reader

	BytesRead int64
	Limit     int64 // 0 disables the cap
}

// NewUploadReader creates an UploadReader. limit <= 0 disables the cap.
func NewUploadReader(ctx context.Context, r io.Reader, limit int64) *UploadReader {
	if limit < 0 {
		limit = 0
	}
	return &UploadReader{ctx: ctx, reader: r, Limit: limit}
}

// Read implements io.Reader. With a cap it reads at most one byte past
// Limit, which is enough to tell an exact fit from an overflow.
func (u *UploadReader) Read(p []byte) (int, error) {
	if err := u.ctx.Err(); err != nil {
		return 0, err
	}
	if u.Limit > 0 {
		if u.BytesRead > u.Limit {
			return 0, ErrFileTooLarge
		}
		if room := u.Limit + 1 - u.BytesRead; int64(len(p)) > room {
			p = p[:room]
		}
	}

	n, err := u.reader.Read(p)
	u.BytesRead += int64(n)
	if u.Limit > 0 && u.BytesRead > u.Limit {
		return n, ErrFileTooLarge
	}
	return n, err
}
