package domain

import "go.uber.org/zap"

// Logger is the structured diagnostics sink for domain-level events: trait
// definition conflicts, lazy-initializer failures, and zone entry. It
// defaults to a no-op logger so importing this package has no side effect
// on a host's own logging configuration; call SetLogger to wire it up.
var Logger *zap.Logger = zap.NewNop()

// SetLogger installs l as the package-wide structured logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	Logger = l
}
