package dispatch

import (
	"fmt"
	"strings"
)

// FormatHex renders b as space separated lowercase pairs. Output past limit
// bytes is elided; limit <= 0 prints everything.
func FormatHex(b []byte, limit int) string {
	if len(b) == 0 {
		return ""
	}
	shown := b
	if limit > 0 && len(b) > limit {
		shown = b[:limit]
	}
	var sb strings.Builder
	sb.Grow(len(shown) * 3)
	for i, v := range shown {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	if len(shown) < len(b) {
		fmt.Fprintf(&sb, " ... (%d bytes)", len(b))
	}
	return sb.String()
}
