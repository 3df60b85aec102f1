package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/extract"
	"github.com/JonMunkholm/roster/internal/logging"
)

// errExtractionFailed is returned when at least one file produced an
// error envelope. The envelopes themselves are already on stdout.
var errExtractionFailed = errors.New("one or more files failed to extract")

type options struct {
	pretty   bool
	jobs     int
	logLevel string
}

// envelope is what both extractors return.
type envelope interface {
	OK() bool
}

// failure is a file that produced an error envelope.
type failure struct {
	path    string
	message string
}

// envelopeMessage returns the message of an error envelope.
func envelopeMessage(res envelope) string {
	switch r := res.(type) {
	case extract.EnrollmentResult:
		return r.Message
	case extract.TimetableResult:
		return r.Message
	}
	return ""
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "roster-extract",
		Short: "Extract student rosters and timetables from office documents",
		Long: `roster-extract reads enrollment lists (.xlsx, .xls, .docx) and timetables
(.docx) and prints each file's result as JSON, in argument order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")
	rootCmd.PersistentFlags().IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "Number of files to extract concurrently")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newExtractCmd("enrollment", "Extract students from enrollment files", opts,
			func(path string) envelope { return extract.ExtractEnrollment(path) }),
		newExtractCmd("timetable", "Extract timetable tables from .docx files", opts,
			func(path string) envelope { return extract.ExtractTimetable(path) }),
	)
	return rootCmd
}

func newExtractCmd(name, short string, opts *options, fn func(path string) envelope) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <file>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jobs < 1 {
				return fmt.Errorf("invalid --jobs %d: must be at least 1", opts.jobs)
			}
			logger := logging.New(cmd.ErrOrStderr(), opts.logLevel, "text").With("kind", name)

			out, failed, err := run(args, opts, logger, fn)
			if err != nil {
				return err
			}
			for _, b := range out {
				if _, err := cmd.OutOrStdout().Write(b); err != nil {
					return err
				}
			}
			if len(failed) > 0 {
				stderr := cmd.ErrOrStderr()
				for _, f := range failed {
					fmt.Fprintf(stderr, "%s: %s\n", f.path, core.FormatUserError(errors.New(f.message)))
				}
				fmt.Fprintf(stderr, "%d of %d files failed\n", len(failed), len(args))
				return errExtractionFailed
			}
			return nil
		},
	}
}

// run extracts every path with at most opts.jobs files in flight and
// returns the encoded envelopes and the failed files, both in argument
// order.
func run(paths []string, opts *options, logger *slog.Logger, fn func(path string) envelope) ([][]byte, []failure, error) {
	out := make([][]byte, len(paths))
	ok := make([]bool, len(paths))
	messages := make([]string, len(paths))

	var g errgroup.Group
	g.SetLimit(opts.jobs)

	for i, path := range paths {
		g.Go(func() error {
			start := time.Now()
			res := fn(path)
			ok[i] = res.OK()
			if !ok[i] {
				messages[i] = envelopeMessage(res)
			}

			b, err := encode(res, opts.pretty)
			if err != nil {
				return fmt.Errorf("%s: encode result: %w", path, err)
			}
			out[i] = b

			logger.Debug("extracted", "file", path, "ok", ok[i], "duration_ms", time.Since(start).Milliseconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var failed []failure
	for i, v := range ok {
		if !v {
			failed = append(failed, failure{path: paths[i], message: messages[i]})
		}
	}
	return out, failed, nil
}

func encode(v any, pretty bool) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
