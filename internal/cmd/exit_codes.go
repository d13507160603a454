package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/config"
)

const (
	exitOK          = 0
	exitGeneric     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitNotFound    = 4
	exitForbidden   = 5
	exitRateLimited = 6
	exitServer      = 7
	exitNetwork     = 8
	exitDecode      = 9
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	var handled *handledError
	if errors.As(err, &handled) {
		if handled.exitCode != 0 {
			return handled.exitCode
		}
		err = handled.err
	}

	if errors.Is(err, config.ErrNotConfigured) {
		return exitAuth
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return exitNetwork
	}
	if code := exitCodeFromStructured(err); code != 0 {
		return code
	}
	if isUsageError(err) {
		return exitUsage
	}
	return exitGeneric
}

func exitCodeFromStructured(err error) int {
	switch api.StructuredErrorFromError(err).Code {
	case api.ErrUnauthorized:
		return exitAuth
	case api.ErrForbidden:
		return exitForbidden
	case api.ErrNotFound:
		return exitNotFound
	case api.ErrRateLimited:
		return exitRateLimited
	case api.ErrServerError:
		return exitServer
	case api.ErrTimeout, api.ErrNetwork:
		return exitNetwork
	case api.ErrDecode:
		return exitDecode
	case api.ErrBadRequest, api.ErrValidation, api.ErrConflict, api.ErrInvalidPath:
		return exitUsage
	default:
		return 0
	}
}

func isUsageError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"accepts ",
		"requires at least",
		"requires exactly",
		"invalid argument",
		"invalid --",
		"must be",
		"is required",
		"cannot be used",
		"conflicts with",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
