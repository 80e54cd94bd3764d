package classimport

import "go.uber.org/zap"

// Logger is the structured diagnostics sink for registration events (one
// Info entry per imported class descriptor; load-time rejections are
// returned as errors and not logged), mirroring domain.Logger and emit's own
// debug-logging posture: a no-op default so importing this package has no
// side effect on a host's logging configuration.
var Logger *zap.Logger = zap.NewNop()

// SetLogger installs l as the package-wide structured logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	Logger = l
}
