package base

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
	"io"
	"net"
	"os"
)

const (
	// headerSize is the size of the length prefix of a frame
	headerSize = 4

	// readBufferSize is the size of the carry-over buffer of a FrameReader
	readBufferSize = 64 * 1024
)

// EncodeFrame returns the frame of a body:
// - 4 bytes: body length (uint32, big endian)
// - N bytes: body
func EncodeFrame(body []byte) []byte {
	frame := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(frame[:headerSize], uint32(len(body)))
	copy(frame[headerSize:], body)
	return frame
}

// WriteFrame writes the length prefix and the body with a single vectored write
func WriteFrame(w io.Writer, body []byte) error {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header, uint32(len(body)))

	b := net.Buffers{header, body}
	_, err := b.WriteTo(w)
	return err
}

// FrameReader reads length prefixed frames from a stream.
// Bytes read past the end of a frame stay buffered for the next call.
type FrameReader struct {
	r       *bufio.Reader
	maxSize uint32
}

// NewFrameReader creates a reader for r. Frames with a body larger than maxSize are
// rejected with common.ErrProtocol, a maxSize of 0 disables the check.
func NewFrameReader(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{
		r:       bufio.NewReaderSize(r, readBufferSize),
		maxSize: maxSize,
	}
}

// ReadFrame reads the next frame and returns its body.
//
// If the read deadline of the underlying connection expires before the first byte of
// the frame arrived, common.ErrReceiveTimeout is returned and the stream is still in sync.
// A deadline expiring in the middle of a frame leaves the stream out of sync and is
// reported as common.ErrConnectionClosed, like EOF and every other read error.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	var header [headerSize]byte

	n, err := io.ReadFull(f.r, header[:])
	if err != nil {
		switch {
		case n == 0 && isTimeout(err):
			return nil, fmt.Errorf("%w: %v", common.ErrReceiveTimeout, err)
		case n == 0 && errors.Is(err, io.EOF):
			return nil, common.ErrConnectionClosed
		default:
			return nil, fmt.Errorf("%w: reading frame header (%d of %d bytes): %v", common.ErrConnectionClosed, n, headerSize, err)
		}
	}

	size := binary.BigEndian.Uint32(header[:])
	if f.maxSize > 0 && size > f.maxSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds the limit of %d bytes", common.ErrProtocol, size, f.maxSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return nil, fmt.Errorf("%w: reading frame body of %d bytes: %v", common.ErrConnectionClosed, size, err)
	}

	return body, nil
}

// isTimeout returns true if err is a deadline error of a net.Conn
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
