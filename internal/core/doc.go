// Package core runs enrollment and timetable extractions for uploaded files.
//
// It sits between the HTTP layer and the format-specific readers in
// package extract and owns everything an upload needs beyond parsing:
//
//   - Limiting: an [ExtractionLimiter] bounds how many uploads are spooled
//     and parsed at once. Requests that cannot get a slot within the wait
//     time fail with [ErrTooManyExtractions].
//   - Spooling: each upload is copied to a uniquely named temp file that
//     keeps its extension, and the file is removed on every path.
//   - Logging: each outcome is written to the structured log and to the
//     extraction log ([history.Store]).
//   - Error messages: [MapError] and [MapMessage] turn technical errors and
//     extraction messages into user-facing text with support codes.
//
// # Result vs error
//
// [Service.ExtractEnrollment] and [Service.ExtractTimetable] return an
// error envelope (status "error") for everything wrong with the file
// itself: unsupported extension, unreadable content, no usable rows. The
// Go error is reserved for the request and the host: a saturated limiter,
// cancellation, oversized uploads and temp file failures.
package core
