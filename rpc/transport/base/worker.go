//go:build linux

package base

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

const (
	// MaxLineLength bounds a single request line, longer lines end the connection
	MaxLineLength = 1 << 20
	// farewell is sent when the client closes its side without quitting
	farewell = "bye\n"
)

var errLineTooLong = errors.New("request line too long")

// session is the per connection state of a worker
type session struct {
	id     uint64
	conn   net.Conn
	reader *bufio.Reader
	prompt string
}

// serve runs the read-eval-print loop of a single connection. It returns when
// the client quits, closes its side or an IO error occurs.
func (t *serverTransport) serve(id uint64, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("connection %d: handler panicked: %v", id, r)
		}
		t.conns.Delete(id)
		if err := conn.Close(); err != nil {
			Logger.Debugf("connection %d: close failed: %v", id, err)
		}
		Logger.Debugf("connection %d closed", id)
	}()

	Logger.Debugf("connection %d opened from %s", id, conn.RemoteAddr())

	s := &session{
		id:     id,
		conn:   conn,
		reader: bufio.NewReader(conn),
		prompt: t.config.Prompt,
	}

	for {
		if err := s.write(s.prompt); err != nil {
			Logger.Debugf("connection %d: failed to write prompt: %v", id, err)
			return
		}

		line, err := s.readLine()
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			Logger.Warningf("connection %d: read failed: %v", id, err)
			return
		}

		input := strings.TrimSpace(line)
		if input == "quit" || input == "exit" {
			return
		}
		if input != "" {
			if err := s.write(t.handler(input) + "\n"); err != nil {
				Logger.Debugf("connection %d: failed to write response: %v", id, err)
				return
			}
		}

		if eof {
			if err := s.write(farewell); err != nil {
				Logger.Debugf("connection %d: failed to write farewell: %v", id, err)
			}
			return
		}
	}
}

// readLine reads up to and including the next newline. A final line without a
// newline is returned together with io.EOF.
func (s *session) readLine() (string, error) {
	var line []byte
	for {
		chunk, err := s.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineLength {
			return "", errLineTooLong
		}

		switch {
		case err == nil:
			return string(line), nil
		case errors.Is(err, bufio.ErrBufferFull), isTransient(err):
			continue
		default:
			return string(line), err
		}
	}
}

// write writes the whole message, retrying after transient failures
func (s *session) write(msg string) error {
	buf := []byte(msg)
	for len(buf) > 0 {
		n, err := s.conn.Write(buf)
		buf = buf[n:]
		if err != nil && !isTransient(err) {
			return err
		}
	}
	return nil
}

// isTransient reports whether a read or write may simply be retried
func isTransient(err error) bool {
	if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
