package mr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "lowercase stays", raw: "quick", want: "quick"},
		{name: "uppercase folds", raw: "THE", want: "the"},
		{name: "punctuation dropped", raw: "cat,", want: "cat"},
		{name: "inner punctuation merges", raw: "Hello,World!", want: "helloworld"},
		{name: "digits kept", raw: "R2-D2", want: "r2d2"},
		{name: "all punctuation", raw: "--!?", want: ""},
		{name: "empty", raw: "", want: ""},
		{name: "non-ascii dropped", raw: "caf\xc3\xa9", want: "caf"},
		{name: "binary", raw: "\x00a\xffB\x7f", want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Normalize([]byte(tt.raw))))
		})
	}
}

func TestAppendNormalized_ReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 16)
	buf = AppendNormalized(buf, []byte("Foo"))
	assert.Equal(t, "foo", string(buf))

	buf = AppendNormalized(buf[:0], []byte("b.a.r"))
	assert.Equal(t, "bar", string(buf))
	assert.Equal(t, 16, cap(buf))
}

func asciiUpper(raw []byte) []byte {
	out := make([]byte, len(raw))
	for i, b := range raw {
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return out
}

func TestNormalize_Properties(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			raw := rapid.SliceOf(rapid.Byte()).Draw(t, "raw")
			once := Normalize(raw)
			assert.Equal(t, string(once), string(Normalize(once)))
		})
	})

	t.Run("case insensitive", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			raw := rapid.SliceOf(rapid.Byte()).Draw(t, "raw")
			assert.Equal(t, string(Normalize(raw)), string(Normalize(asciiUpper(raw))))
		})
	})

	t.Run("lowercase alnum only", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			raw := rapid.SliceOf(rapid.Byte()).Draw(t, "raw")
			for _, b := range Normalize(raw) {
				if !(b >= 'a' && b <= 'z' || b >= '0' && b <= '9') {
					t.Fatalf("unexpected byte %q in output", b)
				}
			}
		})
	})
}
