package process

import "strings"

const esc = 0x1b

// StripAnsi removes terminal escape sequences (CSI, OSC and two byte escapes).
func StripAnsi(s string) string {
	// fast path: nothing to strip
	idx := strings.IndexByte(s, esc)
	if idx == -1 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:idx])

	for idx < len(s) {
		c := s[idx]
		if c != esc {
			b.WriteByte(c)
			idx++
			continue
		}
		if idx+1 >= len(s) {
			// dangling ESC
			break
		}

		switch s[idx+1] {
		case '[':
			// CSI: parameters and intermediates, then one final byte in 0x40..0x7e
			idx += 2
			for idx < len(s) && (s[idx] < 0x40 || s[idx] > 0x7e) {
				idx++
			}
			idx++
		case ']':
			// OSC: terminated by BEL or ESC \
			idx += 2
			for idx < len(s) {
				if s[idx] == 0x07 {
					idx++
					break
				}
				if s[idx] == esc && idx+1 < len(s) && s[idx+1] == '\\' {
					idx += 2
					break
				}
				idx++
			}
		default:
			idx += 2
		}
	}
	return b.String()
}
