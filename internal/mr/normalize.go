package mr

// Normalize maps a raw token to its canonical form: ASCII letters and digits
// are kept (letters lowercased), every other byte is dropped.
//
// Dropped bytes are not replaced, so "Hello,World!" becomes "helloworld".
func Normalize(raw []byte) []byte {
	return AppendNormalized(make([]byte, 0, len(raw)), raw)
}

// AppendNormalized appends the normalized form of raw to dst and returns the
// extended slice.
func AppendNormalized(dst, raw []byte) []byte {
	for _, b := range raw {
		switch {
		case b >= 'a' && b <= 'z', b >= '0' && b <= '9':
			dst = append(dst, b)
		case b >= 'A' && b <= 'Z':
			dst = append(dst, b+('a'-'A'))
		}
	}
	return dst
}

// isSpace reports whether b is a C-locale whitespace byte.
func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
