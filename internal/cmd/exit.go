package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/adminclient"
	"github.com/wishmail/wishmail/internal/core/ratelimit"
)

// configError marks failures to load or validate configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return "invalid configuration: " + e.err.Error() }

func (e *configError) Unwrap() error { return e.err }

// ExitCodeFor maps a command error to the semantic exit code main reports.
func ExitCodeFor(err error) foundry.ExitCode {
	var (
		cfgErr *configError
		apiErr *adminclient.APIError
	)
	switch {
	case stderrors.As(err, &cfgErr):
		return foundry.ExitConfigInvalid
	case ratelimit.IsThrottled(err):
		return foundry.ExitExternalServiceUnavailable
	case stderrors.As(err, &apiErr):
		if apiErr.Throttled() || apiErr.StatusCode >= 500 {
			return foundry.ExitExternalServiceUnavailable
		}
		return foundry.ExitFailure
	default:
		return foundry.ExitFailure
	}
}

// failureFields describes err for structured logs, unwrapping envelopes and
// throttle refusals.
func failureFields(info exitMeta, err error) []zap.Field {
	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	if envelope, ok := asEnvelope(err); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}
	if te, ok := ratelimit.AsThrottled(err); ok {
		fields = append(fields,
			zap.String("refusal", string(te.Decision.Kind)),
			zap.Duration("retry_after", te.Decision.RetryAfter))
	}
	return append(fields, zap.Error(err))
}

// writeFailure prints the human-readable form of a fatal error.
func writeFailure(w io.Writer, info exitMeta, msg string, err error) {
	switch envelope, ok := asEnvelope(err); {
	case ok:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if original, ok := envelope.Original.(error); ok {
			fmt.Fprintf(w, "Underlying error: %v\n", original)
		}
	case err != nil:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	default:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	}
	if te, ok := ratelimit.AsThrottled(err); ok && te.Decision.RetryAfter > 0 {
		fmt.Fprintf(w, "Retry after: %s\n", te.Decision.RetryAfter.Round(time.Second))
	}
	fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
}

// exitMeta is the catalog entry for an exit code.
type exitMeta struct {
	Code        int
	Name        string
	Description string
	Category    string
}

func exitInfo(code foundry.ExitCode) exitMeta {
	info, ok := foundry.GetExitCodeInfo(code)
	if !ok {
		return exitMeta{Code: int(code), Name: "UNKNOWN", Description: "unknown exit code"}
	}
	return exitMeta{Code: info.Code, Name: info.Name, Description: info.Description, Category: info.Category}
}

// ExitWithCode logs err with exit code metadata and exits. A nil logger falls
// back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info := exitInfo(exitCode)
	if logger == nil {
		writeFailure(os.Stderr, info, msg, err)
	} else {
		logger.Error(msg, failureFields(info, err)...)
	}
	os.Exit(info.Code)
}

// ExitWithCodeStderr is ExitWithCode for failures before any logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info := exitInfo(exitCode)
	writeFailure(os.Stderr, info, msg, err)
	os.Exit(info.Code)
}

func asEnvelope(err error) (*errors.ErrorEnvelope, bool) {
	var envelope *errors.ErrorEnvelope
	if err != nil && stderrors.As(err, &envelope) {
		return envelope, true
	}
	return nil, false
}
