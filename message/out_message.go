package message

import (
	"encoding/binary"
	"math"

	"ipcrpc/ipcerr"
)

// OutMessage is an append-only message builder. Its first HeaderWidth
// bytes are always the little-endian length of the whole buffer,
// including the header; the invariant is re-established after every
// successful append (never advanced incrementally — see DESIGN.md
// Open Question #2).
type OutMessage struct {
	cfg    Config
	buf    []byte
	failed bool
}

// NewOutMessage returns an empty message with its header already
// written to reflect the header-only length.
func NewOutMessage(cfg Config) *OutMessage {
	m := &OutMessage{cfg: cfg}
	m.Clear()
	return m
}

// Clear resets the message to an empty, header-only buffer and clears
// the sticky fail flag.
func (m *OutMessage) Clear() {
	m.buf = make([]byte, m.cfg.HeaderWidth)
	m.failed = false
	m.writeHeader()
}

// Bytes returns the underlying buffer, header included, ready to send.
func (m *OutMessage) Bytes() []byte { return m.buf }

// Len returns the total buffer length, header included.
func (m *OutMessage) Len() int { return len(m.buf) }

// Failed reports whether the sticky fail flag is set.
func (m *OutMessage) Failed() bool { return m.failed }

// Config returns the message's wire configuration.
func (m *OutMessage) Config() Config { return m.cfg }

func (m *OutMessage) writeHeader() {
	switch m.cfg.HeaderWidth {
	case 4:
		binary.LittleEndian.PutUint32(m.buf[0:4], uint32(len(m.buf)))
	default:
		binary.LittleEndian.PutUint16(m.buf[0:2], uint16(len(m.buf)))
	}
}

// reserve grows the buffer by encodedLen bytes only if doing so would
// not exceed the header-width size limit and the message has not
// already failed. On overflow the buffer is left byte-identical to
// before the call and ipcerr.MessageOverflow is returned.
func (m *OutMessage) reserve(op string, encodedLen int) ([]byte, error) {
	if m.failed {
		return nil, ipcerr.New(ipcerr.BadMessage, op, nil)
	}
	newLen := len(m.buf) + encodedLen
	if newLen > m.cfg.MaxMessageSize() {
		m.failed = true
		return nil, ipcerr.Sized(ipcerr.MessageOverflow, op, newLen, m.cfg.MaxMessageSize())
	}
	start := len(m.buf)
	m.buf = append(m.buf, make([]byte, encodedLen)...)
	return m.buf[start:], nil
}

func (m *OutMessage) appendTag(dst []byte, tag Tag) int {
	if !m.cfg.TagsEnabled {
		return 0
	}
	dst[0] = byte(tag)
	return 1
}

// AppendU32 appends a little-endian uint32 field.
func (m *OutMessage) AppendU32(v uint32) error {
	dst, err := m.reserve("append u32", m.fieldLen(TagU32, 4))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagU32)
	binary.LittleEndian.PutUint32(dst[n:], v)
	m.writeHeader()
	return nil
}

// AppendI32 appends a little-endian int32 field.
func (m *OutMessage) AppendI32(v int32) error {
	dst, err := m.reserve("append i32", m.fieldLen(TagI32, 4))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagI32)
	binary.LittleEndian.PutUint32(dst[n:], uint32(v))
	m.writeHeader()
	return nil
}

// AppendU64 appends a little-endian uint64 field.
func (m *OutMessage) AppendU64(v uint64) error {
	dst, err := m.reserve("append u64", m.fieldLen(TagU64, 8))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagU64)
	binary.LittleEndian.PutUint64(dst[n:], v)
	m.writeHeader()
	return nil
}

// AppendI64 appends a little-endian int64 field.
func (m *OutMessage) AppendI64(v int64) error {
	dst, err := m.reserve("append i64", m.fieldLen(TagI64, 8))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagI64)
	binary.LittleEndian.PutUint64(dst[n:], uint64(v))
	m.writeHeader()
	return nil
}

// AppendFP64 appends a little-endian float64 field.
func (m *OutMessage) AppendFP64(v float64) error {
	dst, err := m.reserve("append fp64", m.fieldLen(TagFP64, 8))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagFP64)
	binary.LittleEndian.PutUint64(dst[n:], math.Float64bits(v))
	m.writeHeader()
	return nil
}

// AppendChr appends a single byte field.
func (m *OutMessage) AppendChr(v byte) error {
	dst, err := m.reserve("append chr", m.fieldLen(TagChr, 1))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagChr)
	dst[n] = v
	m.writeHeader()
	return nil
}

// AppendRemotePtr appends an opaque 8-byte handle field.
func (m *OutMessage) AppendRemotePtr(v RemotePtr) error {
	dst, err := m.reserve("append remote_ptr", m.fieldLen(TagRemotePtr, 8))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagRemotePtr)
	binary.LittleEndian.PutUint64(dst[n:], uint64(v))
	m.writeHeader()
	return nil
}

// AppendStr appends the raw bytes of s followed by a single
// terminating zero byte. s need not be null-terminated and may
// contain embedded zero bytes; those are written through verbatim —
// a later ExtractStr call will stop at the first zero byte it finds,
// silently truncating. This mirrors the source library's documented
// (if surprising) behavior; see DESIGN.md Open Question #1.
func (m *OutMessage) AppendStr(s string) error {
	payload := len(s) + 1
	dst, err := m.reserve("append str", m.fieldLen(TagStr, payload))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagStr)
	copy(dst[n:], s)
	dst[n+len(s)] = 0
	m.writeHeader()
	return nil
}

// AppendBlob appends a length-prefixed (HeaderWidth bytes) raw byte
// sequence.
func (m *OutMessage) AppendBlob(b []byte) error {
	payload := m.cfg.HeaderWidth + len(b)
	dst, err := m.reserve("append blob", m.fieldLen(TagBlob, payload))
	if err != nil {
		return err
	}
	n := m.appendTag(dst, TagBlob)
	switch m.cfg.HeaderWidth {
	case 4:
		binary.LittleEndian.PutUint32(dst[n:], uint32(len(b)))
	default:
		binary.LittleEndian.PutUint16(dst[n:], uint16(len(b)))
	}
	copy(dst[n+m.cfg.HeaderWidth:], b)
	m.writeHeader()
	return nil
}

func (m *OutMessage) fieldLen(tag Tag, payload int) int {
	if m.cfg.TagsEnabled {
		return 1 + payload
	}
	return payload
}
