package server

import (
	"go.uber.org/zap"

	"package-indexer/internal/indexer"
	"package-indexer/internal/wire"
)

// dispatch parses line and executes the resulting command against the
// index store, translating the outcome into a wire response. Parse
// failures are reported as wire.ERROR and never reach the index.
func (sess *session) dispatch(line string) wire.Response {
	cmd, err := wire.ParseCommand(line)
	if err != nil {
		sess.log.Debug("parse error", zap.Error(err), zap.String("line", line))
		sess.metrics.IncrementErrors()
		return wire.ERROR
	}

	switch cmd.Type {
	case wire.IndexCommand:
		if sess.idx.IndexPackage(cmd.Package, cmd.Dependencies) {
			return wire.OK
		}
		return wire.FAIL

	case wire.RemoveCommand:
		switch sess.idx.RemovePackage(cmd.Package) {
		case indexer.RemoveResultOK, indexer.RemoveResultNotIndexed:
			return wire.OK
		case indexer.RemoveResultBlocked:
			return wire.FAIL
		}
		sess.log.Panic("unreachable remove result")
		return wire.ERROR

	case wire.QueryCommand:
		if sess.idx.QueryPackage(cmd.Package) {
			return wire.OK
		}
		return wire.FAIL

	default:
		sess.log.Panic("unreachable command type", zap.Int("type", int(cmd.Type)))
		return wire.ERROR
	}
}
