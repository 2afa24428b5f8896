package message

import (
	"bytes"
	"encoding/binary"
	"math"

	"ipcrpc/ipcerr"
)

// InMessage walks a received buffer by cursor, extracting typed
// fields in the order they were appended.
type InMessage struct {
	cfg    Config
	buf    []byte
	cursor int
	failed bool
}

// NewInMessage wraps buf (header included) for reading.
func NewInMessage(cfg Config, buf []byte) *InMessage {
	m := &InMessage{cfg: cfg}
	m.Load(buf)
	return m
}

// Load replaces the buffer being read and resets the cursor past the
// header, clearing the sticky fail flag.
func (m *InMessage) Load(buf []byte) {
	m.buf = buf
	m.cursor = m.cfg.HeaderWidth
	m.failed = false
}

// Rewind moves the cursor back to the start of the payload and clears
// the sticky fail flag, letting a handler re-extract the same buffer
// it already consumed — used by middleware.RetryMiddleware to replay
// a dispatch without a second read off the wire.
func (m *InMessage) Rewind() {
	m.cursor = m.cfg.HeaderWidth
	m.failed = false
}

// Reset clears the message to an empty, header-only buffer.
func (m *InMessage) Reset() {
	m.buf = make([]byte, m.cfg.HeaderWidth)
	m.cursor = m.cfg.HeaderWidth
	m.failed = false
}

// IsEmpty reports whether the cursor has reached the declared end of
// the message.
func (m *InMessage) IsEmpty() bool { return m.cursor >= len(m.buf) }

// Failed reports whether the sticky fail flag is set.
func (m *InMessage) Failed() bool { return m.failed }

// Config returns the message's wire configuration.
func (m *InMessage) Config() Config { return m.cfg }

// DeclaredLen reads the header without advancing the cursor.
func (m *InMessage) DeclaredLen() int {
	switch m.cfg.HeaderWidth {
	case 4:
		return int(binary.LittleEndian.Uint32(m.buf[0:4]))
	default:
		return int(binary.LittleEndian.Uint16(m.buf[0:2]))
	}
}

func (m *InMessage) require(op string, n int) ([]byte, error) {
	if m.failed {
		return nil, ipcerr.New(ipcerr.BadMessage, op, nil)
	}
	if m.cursor+n > len(m.buf) {
		m.failed = true
		return nil, ipcerr.Sized(ipcerr.MessageTooShort, op, n, len(m.buf)-m.cursor)
	}
	return m.buf[m.cursor : m.cursor+n], nil
}

func (m *InMessage) checkTag(op string, want Tag) error {
	if !m.cfg.TagsEnabled {
		return nil
	}
	got, err := m.require(op, 1)
	if err != nil {
		return err
	}
	if Tag(got[0]) != want {
		m.failed = true
		return &ipcerr.Error{Kind: ipcerr.TypeMismatch, Op: op}
	}
	m.cursor++
	return nil
}

// PeekTag reports the tag of the next field without consuming it.
// Only meaningful when tags are enabled.
func (m *InMessage) PeekTag() (Tag, error) {
	b, err := m.require("peek tag", 1)
	if err != nil {
		return 0, err
	}
	return Tag(b[0]), nil
}

// PeekU32 reads the leading u32 field without advancing the cursor.
// Used by the rpc layer to route on the leading done-tag/function-id
// before committing to a full extract.
func (m *InMessage) PeekU32() (uint32, error) {
	save, saveFailed := m.cursor, m.failed
	v, err := m.ExtractU32()
	m.cursor = save
	m.failed = saveFailed
	return v, err
}

// ExtractU32 reads a little-endian uint32 field.
func (m *InMessage) ExtractU32() (uint32, error) {
	if err := m.checkTag("extract u32", TagU32); err != nil {
		return 0, err
	}
	b, err := m.require("extract u32", 4)
	if err != nil {
		return 0, err
	}
	m.cursor += 4
	return binary.LittleEndian.Uint32(b), nil
}

// ExtractI32 reads a little-endian int32 field.
func (m *InMessage) ExtractI32() (int32, error) {
	if err := m.checkTag("extract i32", TagI32); err != nil {
		return 0, err
	}
	b, err := m.require("extract i32", 4)
	if err != nil {
		return 0, err
	}
	m.cursor += 4
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// ExtractU64 reads a little-endian uint64 field.
func (m *InMessage) ExtractU64() (uint64, error) {
	if err := m.checkTag("extract u64", TagU64); err != nil {
		return 0, err
	}
	b, err := m.require("extract u64", 8)
	if err != nil {
		return 0, err
	}
	m.cursor += 8
	return binary.LittleEndian.Uint64(b), nil
}

// ExtractI64 reads a little-endian int64 field.
func (m *InMessage) ExtractI64() (int64, error) {
	if err := m.checkTag("extract i64", TagI64); err != nil {
		return 0, err
	}
	b, err := m.require("extract i64", 8)
	if err != nil {
		return 0, err
	}
	m.cursor += 8
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// ExtractFP64 reads a little-endian float64 field.
func (m *InMessage) ExtractFP64() (float64, error) {
	if err := m.checkTag("extract fp64", TagFP64); err != nil {
		return 0, err
	}
	b, err := m.require("extract fp64", 8)
	if err != nil {
		return 0, err
	}
	m.cursor += 8
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ExtractChr reads a single byte field.
func (m *InMessage) ExtractChr() (byte, error) {
	if err := m.checkTag("extract chr", TagChr); err != nil {
		return 0, err
	}
	b, err := m.require("extract chr", 1)
	if err != nil {
		return 0, err
	}
	m.cursor++
	return b[0], nil
}

// ExtractRemotePtr reads an opaque 8-byte handle field.
func (m *InMessage) ExtractRemotePtr() (RemotePtr, error) {
	if err := m.checkTag("extract remote_ptr", TagRemotePtr); err != nil {
		return 0, err
	}
	b, err := m.require("extract remote_ptr", 8)
	if err != nil {
		return 0, err
	}
	m.cursor += 8
	return RemotePtr(binary.LittleEndian.Uint64(b)), nil
}

// ExtractStr reads bytes up to (and consuming) the first zero byte in
// the remaining declared message. If the remainder holds no zero
// byte, it raises ipcerr.ContainerOverflow. Any bytes after the
// terminator that were written as part of an embedded-zero input are
// left unconsumed for a subsequent extract — see DESIGN.md Open
// Question #1.
func (m *InMessage) ExtractStr() (string, error) {
	if err := m.checkTag("extract str", TagStr); err != nil {
		return "", err
	}
	if m.failed {
		return "", ipcerr.New(ipcerr.BadMessage, "extract str", nil)
	}
	remainder := m.buf[m.cursor:]
	idx := bytes.IndexByte(remainder, 0)
	if idx < 0 {
		m.failed = true
		return "", ipcerr.Sized(ipcerr.ContainerOverflow, "extract str", 0, len(remainder))
	}
	s := string(remainder[:idx])
	m.cursor += idx + 1
	return s, nil
}

// ExtractBlob reads a length-prefixed raw byte sequence, returning an
// owned copy.
func (m *InMessage) ExtractBlob() ([]byte, error) {
	if err := m.checkTag("extract blob", TagBlob); err != nil {
		return nil, err
	}
	lenField, err := m.require("extract blob length", m.cfg.HeaderWidth)
	if err != nil {
		return nil, err
	}
	var blobLen int
	switch m.cfg.HeaderWidth {
	case 4:
		blobLen = int(binary.LittleEndian.Uint32(lenField))
	default:
		blobLen = int(binary.LittleEndian.Uint16(lenField))
	}
	m.cursor += m.cfg.HeaderWidth
	b, err := m.require("extract blob", blobLen)
	if err != nil {
		return nil, err
	}
	m.cursor += blobLen
	out := make([]byte, blobLen)
	copy(out, b)
	return out, nil
}

// ExtractBlobInto reads a length-prefixed raw byte sequence into a
// fixed-capacity buffer, failing with ipcerr.ContainerOverflow if the
// on-wire length exceeds the buffer's capacity.
func (m *InMessage) ExtractBlobInto(dst []byte) (int, error) {
	if err := m.checkTag("extract blob", TagBlob); err != nil {
		return 0, err
	}
	lenField, err := m.require("extract blob length", m.cfg.HeaderWidth)
	if err != nil {
		return 0, err
	}
	var blobLen int
	switch m.cfg.HeaderWidth {
	case 4:
		blobLen = int(binary.LittleEndian.Uint32(lenField))
	default:
		blobLen = int(binary.LittleEndian.Uint16(lenField))
	}
	if blobLen > len(dst) {
		m.failed = true
		return 0, ipcerr.Sized(ipcerr.ContainerOverflow, "extract blob into", blobLen, len(dst))
	}
	m.cursor += m.cfg.HeaderWidth
	b, err := m.require("extract blob", blobLen)
	if err != nil {
		return 0, err
	}
	m.cursor += blobLen
	copy(dst, b)
	return blobLen, nil
}
