package pager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundaries(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []int
	}{
		{"bare newlines", "a\n\nb", []int{1}},
		{"crlf pairs", "a\r\n\r\nb", []int{1}},
		{"four newlines pair up", "a\n\n\n\nb", []int{1, 3}},
		{"three newlines", "a\n\n\nb", []int{1}},
		{"single newline", "a\nb", nil},
		{"mixed", "one\n\ntwo\r\n\r\nthree", []int{3, 8}},
		{"empty", "", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NewDocument(tc.text).Boundaries(0))
		})
	}
}

func TestFrameEnd(t *testing.T) {
	doc := NewDocument("ab\n\ncd\n\n\n\nef")

	assert.Equal(t, 0, doc.FrameEnd(0, 0))
	assert.Equal(t, 4, doc.FrameEnd(0, 1))
	assert.Equal(t, 8, doc.FrameEnd(0, 2))
	assert.Equal(t, 10, doc.FrameEnd(0, 3))
	assert.Equal(t, doc.Len(), doc.FrameEnd(0, 4), "runs past the last boundary")
	assert.Equal(t, doc.Len(), doc.FrameEnd(0, 100))
	assert.Equal(t, doc.Len(), doc.FrameEnd(doc.Len()+5, 1), "start is clamped")
}

func TestFrameEnd_IdempotentAndMonotonic(t *testing.T) {
	texts := []string{
		"Hello world.\n\nSecond part.\n\nThird.",
		"a\r\n\r\nb\n\n\n\nc\n\nd",
		"no boundaries at all",
		"\n\n\n\n\n",
		"",
	}

	for _, text := range texts {
		doc := NewDocument(text)
		for start := 0; start <= doc.Len(); start++ {
			prev := doc.FrameEnd(start, 0)
			for k := 1; k <= 6; k++ {
				got := doc.FrameEnd(start, k)
				assert.Equal(t, got, doc.FrameEnd(start, k), "idempotent for %q at %d,%d", text, start, k)
				assert.GreaterOrEqual(t, got, prev, "monotonic for %q at %d,%d", text, start, k)
				assert.LessOrEqual(t, got, doc.Len())
				prev = got
			}
		}
	}
}

func TestParagraphBoundary(t *testing.T) {
	doc := NewDocument("Hello world.\n\nSecond part.\r\n\r\nThird.")

	assert.Equal(t, 12, doc.ParagraphBoundary(0))
	assert.Equal(t, 12, doc.ParagraphBoundary(12))
	assert.Equal(t, 26, doc.ParagraphBoundary(14))
	assert.Equal(t, doc.Len(), doc.ParagraphBoundary(30))
}

func TestFrameText(t *testing.T) {
	doc := NewDocument("ab\n\ncd\n\nef")

	assert.Equal(t, "ab\n\n", doc.FrameText(0, 1))
	assert.Equal(t, "ab\n\ncd\n\n", doc.FrameText(0, 2))
	assert.Equal(t, "cd\n\nef", doc.FrameText(4, 9))
	assert.Equal(t, "", doc.FrameText(0, 0))
}

func TestFrame(t *testing.T) {
	doc := NewDocument("\n\n  Hello world.\n\nSecond part.\n\n\n\nThird.")

	first := doc.Frame(0, 1)
	assert.Equal(t, "Hello world.", doc.Text(first))

	second := doc.Frame(first.End, 1)
	assert.Equal(t, "Second part.", doc.Text(second))

	third := doc.Frame(second.End, 1)
	assert.Equal(t, "Third.", doc.Text(third))
	assert.Equal(t, doc.Len(), third.End)

	last := doc.Frame(third.End, 1)
	assert.True(t, last.Empty())
	assert.Equal(t, doc.Len(), last.Start)

	two := doc.Frame(0, 2)
	assert.Equal(t, "Hello world.\n\nSecond part.", doc.Text(two))

	many := doc.Frame(0, 10)
	assert.Equal(t, doc.Len(), many.End)
}

func TestSkip(t *testing.T) {
	doc := NewDocument("a \t\n b")

	assert.Equal(t, 3, doc.SkipInline(1))
	assert.Equal(t, 5, doc.SkipBlank(1))
	assert.Equal(t, doc.Len(), doc.SkipBlank(doc.Len()))
}

func TestSlice_Clamps(t *testing.T) {
	doc := NewDocument("héllo")

	assert.Equal(t, 5, doc.Len())
	assert.Equal(t, "éll", doc.Slice(1, 4))
	assert.Equal(t, "héllo", doc.Slice(-3, 99))
	assert.Equal(t, "", doc.Slice(4, 2))
	assert.Equal(t, 'é', doc.RuneAt(1))
	assert.Equal(t, rune(0), doc.RuneAt(10))
}
