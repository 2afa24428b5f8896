package message_test

import (
	"testing"

	"ipcrpc/message"
)

// Point demonstrates the custom-type serialization pattern: user code
// composes the primitive Append/Extract calls into a pair of small
// helper functions rather than relying on reflection or a schema.
type Point struct {
	X, Y int32
}

func encodePoint(out *message.OutMessage, p Point) error {
	if err := out.AppendI32(p.X); err != nil {
		return err
	}
	return out.AppendI32(p.Y)
}

func decodePoint(in *message.InMessage) (Point, error) {
	x, err := in.ExtractI32()
	if err != nil {
		return Point{}, err
	}
	y, err := in.ExtractI32()
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

func TestCustomTypeSerializationPattern(t *testing.T) {
	out := message.NewOutMessage(message.DefaultConfig)
	want := Point{X: -3, Y: 42}
	if err := encodePoint(out, want); err != nil {
		t.Fatalf("encodePoint: %v", err)
	}

	in := message.NewInMessage(message.DefaultConfig, out.Bytes())
	got, err := decodePoint(in)
	if err != nil {
		t.Fatalf("decodePoint: %v", err)
	}
	if got != want {
		t.Fatalf("decodePoint = %+v, want %+v", got, want)
	}
}

func TestCustomTypeSerializationComposesWithOtherFields(t *testing.T) {
	out := message.NewOutMessage(message.DefaultConfig)
	out.AppendStr("origin")
	p := Point{X: 1, Y: 2}
	if err := encodePoint(out, p); err != nil {
		t.Fatalf("encodePoint: %v", err)
	}
	out.AppendChr('!')

	in := message.NewInMessage(message.DefaultConfig, out.Bytes())
	label, err := in.ExtractStr()
	if err != nil || label != "origin" {
		t.Fatalf("ExtractStr = %q, %v", label, err)
	}
	got, err := decodePoint(in)
	if err != nil || got != p {
		t.Fatalf("decodePoint = %+v, %v", got, err)
	}
	mark, err := in.ExtractChr()
	if err != nil || mark != '!' {
		t.Fatalf("ExtractChr = %q, %v", mark, err)
	}
}
