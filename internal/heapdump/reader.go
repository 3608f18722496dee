package heapdump

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// reader reads big-endian HPROF data and tracks its position.
type reader struct {
	r         *bufio.Reader
	bytesRead int64
	idSize    int
}

func newReader(r io.Reader) *reader {
	return &reader{r: bufio.NewReaderSize(r, 1<<16)}
}

func (br *reader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(br.r, buf)
	br.bytesRead += int64(read)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// readCString reads a null-terminated string
func (br *reader) readCString() (string, error) {
	s, err := br.r.ReadString(0)
	br.bytesRead += int64(len(s))
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

func (br *reader) u1() (uint8, error) {
	b, err := br.r.ReadByte()
	if err != nil {
		return 0, err
	}
	br.bytesRead++
	return b, nil
}

func (br *reader) u2() (uint16, error) {
	buf, err := br.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func (br *reader) u4() (uint32, error) {
	buf, err := br.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

func (br *reader) u8() (uint64, error) {
	buf, err := br.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

// id reads an object ID whose width comes from the file header.
func (br *reader) id() (ID, error) {
	switch br.idSize {
	case 4:
		v, err := br.u4()
		return ID(v), err
	case 8:
		v, err := br.u8()
		return ID(v), err
	default:
		return 0, fmt.Errorf("invalid identifier size: %d", br.idSize)
	}
}

func (br *reader) skip(n int64) error {
	discarded, err := br.r.Discard(int(n))
	br.bytesRead += int64(discarded)
	if err != nil {
		return fmt.Errorf("failed to skip %d bytes: %w", n, err)
	}
	return nil
}

// recordHeader reads tag, time offset and body length of a top-level record.
func (br *reader) recordHeader() (tag uint8, length uint32, err error) {
	tag, err = br.u1()
	if err == io.EOF {
		return 0, 0, err
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read record type: %w", err)
	}
	if _, err = br.u4(); err != nil {
		return 0, 0, fmt.Errorf("failed to read time offset: %w", err)
	}
	if length, err = br.u4(); err != nil {
		return 0, 0, fmt.Errorf("failed to read record length: %w", err)
	}
	return tag, length, nil
}
