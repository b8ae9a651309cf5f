package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"package-indexer/internal/indexer"
)

// session runs the read/dispatch/write loop for a single accepted
// connection. There is no per-read idle deadline: an idle client is a
// normal, supported state, not a condition to be penalized. The connection
// is only ever closed from outside the read via a background goroutine
// reacting to context cancellation.
type session struct {
	conn    net.Conn
	idx     *indexer.Indexer
	metrics *Metrics
	log     *zap.Logger
	maxLine int
}

// errOversizedLine is returned by readLine when a frame exceeds maxLine. The
// offending line has already been fully drained from the connection, so
// framing is resynchronized on the following '\n' and the session can
// continue after reporting a single ERROR.
var errOversizedLine = errors.New("line exceeds maximum size")

// serve blocks until the client disconnects, a fatal I/O error occurs, or
// ctx is cancelled (server shutdown).
func (sess *session) serve(ctx context.Context) {
	reader := bufio.NewReaderSize(sess.conn, sess.maxLine+1)

	doneCh := make(chan struct{})
	defer close(doneCh)
	go func() {
		select {
		case <-ctx.Done():
			_ = sess.conn.Close()
		case <-doneCh:
		}
	}()

	for {
		line, err := sess.readLine(reader)
		if err != nil {
			if errors.Is(err, errOversizedLine) {
				sess.metrics.IncrementErrors()
				if _, werr := sess.conn.Write([]byte("ERROR\n")); werr != nil {
					sess.log.Debug("write error", zap.Error(werr))
					return
				}
				continue
			}
			if err == io.EOF {
				sess.log.Debug("client disconnected")
			} else {
				sess.log.Debug("read error", zap.Error(err))
			}
			return
		}

		sess.metrics.IncrementCommands()
		response := sess.dispatch(line)

		if _, err := sess.conn.Write([]byte(response.String())); err != nil {
			sess.log.Debug("write error", zap.Error(err))
			return
		}
	}
}

// readLine accumulates bytes up to the next '\n'. A line longer than
// maxLine is drained in full so the next '\n' still marks a clean frame
// boundary, and reported as errOversizedLine rather than as I/O failure.
func (sess *session) readLine(reader *bufio.Reader) (string, error) {
	var buf bytes.Buffer
	oversized := false

	for {
		chunk, err := reader.ReadSlice('\n')
		if len(chunk) > 0 {
			if !oversized {
				if buf.Len()+len(chunk) > sess.maxLine {
					oversized = true
				} else {
					buf.Write(chunk)
				}
			}
		}

		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return "", err
	}

	if oversized {
		return "", errOversizedLine
	}

	return buf.String(), nil
}
