package message

// Config is the out-of-band agreement both peers of a connection must
// share: the width of the length header and whether fields carry a
// leading type tag. It stands in for the source library's compile-time
// switches (spec.md §6) as an explicit, testable value instead of a
// build flag — both peers still have to agree on it, but the agreement
// is visible in code rather than buried in a compiler define.
type Config struct {
	// HeaderWidth is the byte width of the little-endian length
	// header. Valid values are 2 (default) and 4.
	HeaderWidth int
	// TagsEnabled selects self-describing (tagged) vs. positional
	// framing.
	TagsEnabled bool
}

// DefaultConfig is a 2-byte header, tags enabled — the source
// library's default.
var DefaultConfig = Config{HeaderWidth: 2, TagsEnabled: true}

// WideConfig raises the header width to 4 bytes, for messages larger
// than 65535 bytes.
var WideConfig = Config{HeaderWidth: 4, TagsEnabled: true}

// NoTagsConfig disables tags; both peers must then agree on field
// order and type out of band.
var NoTagsConfig = Config{HeaderWidth: 2, TagsEnabled: false}

// MaxMessageSize returns the largest message size representable by
// this Config's header width, including the header itself.
func (c Config) MaxMessageSize() int {
	switch c.HeaderWidth {
	case 4:
		return 0xFFFFFFFF
	default:
		return 0xFFFF
	}
}
