package stream

import (
	"context"
	"io"
)

// Source is a restartable stream of events. Each call to Open starts a new
// request; the returned channel is closed when that stream ends or ctx is
// cancelled.
type Source interface {
	Open(ctx context.Context) (<-chan Result, error)
}

const readBufferSize = 4096

// send delivers r unless ctx is done first.
func send(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// readChunks feeds body into fn in read-sized pieces until EOF, error, or fn
// returns false.
func readChunks(body io.Reader, fn func([]byte) bool) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 && !fn(buf[:n]) {
			return nil
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
