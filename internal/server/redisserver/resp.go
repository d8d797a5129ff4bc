package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits.
const (
	MaxArrayLen = 256
	// MaxBulkLen bounds one argument. String field values are the largest
	// thing a client sends.
	MaxBulkLen   = 64 * 1024
	MaxInlineLen = 4 * 1024

	// maxHeaderLen bounds "*<n>" and "$<n>" lines.
	maxHeaderLen = 20
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

var crlf = []byte("\r\n")

// ReadCommand reads one command: a RESP array of bulk strings, or an inline
// line such as "PING\r\n". A blank inline line yields no arguments.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	first, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] != '*' {
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		return bytes.Fields(line), nil
	}

	n, err := readHeader(r, '*', MaxArrayLen)
	if err != nil || n <= 0 {
		return nil, err
	}
	args := make([][]byte, n)
	for i := range args {
		if args[i], err = readBulk(r); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// readHeader reads a "<prefix><n>" line and checks n against limit. A
// negative n is returned as is.
func readHeader(r *bufio.Reader, prefix byte, limit int) (int, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: want %q header, got %q", ErrProtocol, prefix, line)
	}
	n, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		return 0, fmt.Errorf("%w: bad length %q", ErrProtocol, line[1:])
	}
	if n > limit {
		return 0, fmt.Errorf("%w: length %d over %d", ErrLimitExceeded, n, limit)
	}
	return n, nil
}

func readBulk(r *bufio.Reader) ([]byte, error) {
	n, err := readHeader(r, '$', MaxBulkLen)
	switch {
	case err != nil:
		return nil, err
	case n == -1:
		return nil, nil
	case n < -1:
		return nil, fmt.Errorf("%w: bad bulk length %d", ErrProtocol, n)
	}

	buf := make([]byte, n+len(crlf))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if !bytes.Equal(buf[n:], crlf) {
		return nil, fmt.Errorf("%w: bulk not terminated by CRLF", ErrProtocol)
	}
	return buf[:n:n], nil
}

// readLine returns the next CRLF-terminated line without its terminator.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > limit+len(crlf) {
			return nil, fmt.Errorf("%w: line over %d bytes", ErrLimitExceeded, limit)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
	body, ok := bytes.CutSuffix(line, crlf)
	if !ok {
		return nil, fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return body, nil
}

// reply is a RESP value that appends its encoding to a buffer.
type reply interface {
	appendRESP(dst []byte) []byte
}

type (
	simpleString string
	errorReply   string
	integer      int64
	// bulk encodes nil as the null bulk string.
	bulk  []byte
	array []reply
	// multi is several top-level replies sent back to back.
	multi []reply
)

var okReply = simpleString("OK")

func appendLine(dst []byte, prefix byte, s string) []byte {
	dst = append(dst, prefix)
	dst = append(dst, s...)
	return append(dst, crlf...)
}

func appendLen(dst []byte, prefix byte, n int) []byte {
	dst = append(dst, prefix)
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, crlf...)
}

func (s simpleString) appendRESP(dst []byte) []byte { return appendLine(dst, '+', string(s)) }
func (e errorReply) appendRESP(dst []byte) []byte   { return appendLine(dst, '-', string(e)) }
func (n integer) appendRESP(dst []byte) []byte      { return appendLen(dst, ':', int(n)) }

func (b bulk) appendRESP(dst []byte) []byte {
	if b == nil {
		return append(dst, "$-1\r\n"...)
	}
	dst = appendLen(dst, '$', len(b))
	dst = append(dst, b...)
	return append(dst, crlf...)
}

func (a array) appendRESP(dst []byte) []byte {
	dst = appendLen(dst, '*', len(a))
	for _, item := range a {
		dst = item.appendRESP(dst)
	}
	return dst
}

func (m multi) appendRESP(dst []byte) []byte {
	for _, item := range m {
		dst = item.appendRESP(dst)
	}
	return dst
}

// bulkString is a non-nil bulk, so "" encodes as an empty string.
func bulkString(s string) bulk {
	return append(bulk{}, s...)
}

func normalizeCommandName(b []byte) string {
	return strings.ToUpper(string(b))
}
