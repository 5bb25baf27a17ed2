//go:build !nogpu

package gpu

import (
	"log/slog"

	"github.com/gogpu/uibatch"
)

// slogger returns the shared library logger configured via uibatch.SetLogger.
// All logging in internal/gpu goes through this function.
func slogger() *slog.Logger { return uibatch.Logger() }
