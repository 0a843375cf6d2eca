package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Byte streams carry packets as frames with a fixed 8-byte header: a 3-byte
// magic ("erp"), a version byte, and a 4-byte big-endian frame length. The
// receiver reads the header first to learn the frame length, then reads
// exactly that many bytes, so packet boundaries survive the stream.
//
//	0      3  4        8
//	┌──────┬──┬────────┬───────────────┐
//	│magic │v │ length │ frame ...     │
//	│ erp  │01│ uint32 │ length bytes  │
//	└──────┴──┴────────┴───────────────┘
const (
	magic0     byte = 'e'
	magic1     byte = 'r'
	magic2     byte = 'p'
	version    byte = 0x01
	headerSize      = 8
)

// StreamOutput is a channel.Output that frames packets onto an io.Writer
// (typically a net.Conn). It is not goroutine-safe; wrap with
// SerializedOutput when multiple goroutines send on one channel.
type StreamOutput struct {
	w   io.Writer
	buf []byte
}

// NewStreamOutput creates an output writing to w with the given maximum
// frame size.
func NewStreamOutput(w io.Writer, frameSize int) *StreamOutput {
	return &StreamOutput{w: w, buf: make([]byte, frameSize)}
}

func (o *StreamOutput) AcquireBuffer() []byte { return o.buf }

func (o *StreamOutput) Send(frame []byte) error {
	header := [headerSize]byte{magic0, magic1, magic2, version}
	binary.BigEndian.PutUint32(header[4:], uint32(len(frame)))
	if _, err := o.w.Write(header[:]); err != nil {
		return err
	}
	_, err := o.w.Write(frame)
	return err
}

func (o *StreamOutput) Release(frame []byte) {}

// ReadFrame reads one framed packet from r, validating the header. Feed the
// returned bytes to an Endpoint or Server/Client ProcessPacket. The frame
// length is capped by maxFrameSize to bound the allocation a corrupt or
// hostile header could trigger.
func ReadFrame(r io.Reader, maxFrameSize int) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if header[0] != magic0 || header[1] != magic1 || header[2] != magic2 {
		return nil, fmt.Errorf("transport: invalid magic number: %x", header[0:3])
	}
	if header[3] != version {
		return nil, fmt.Errorf("transport: unsupported version: %d", header[3])
	}
	length := binary.BigEndian.Uint32(header[4:])
	if int(length) > maxFrameSize {
		return nil, fmt.Errorf("transport: frame length %d exceeds limit %d", length, maxFrameSize)
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
