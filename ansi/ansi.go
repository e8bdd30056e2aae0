// Package ansi removes terminal escape sequences from program output.
package ansi

const esc = 0x1b

// Strip returns raw without CSI escape sequences. A sequence starts with
// ESC '[' and ends after the first ASCII letter. An unterminated sequence
// at the end of raw is dropped, as is any ESC that does not start a
// sequence, so Strip(Strip(x)) == Strip(x).
func Strip(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != esc {
			out = append(out, c)
			continue
		}
		if i+1 >= len(raw) || raw[i+1] != '[' {
			continue
		}
		// skip ESC '[' then everything up to and including the terminator
		i += 2
		for i < len(raw) && !isLetter(raw[i]) {
			i++
		}
	}
	return out
}

// StripString is Strip for strings.
func StripString(s string) string {
	return string(Strip([]byte(s)))
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
