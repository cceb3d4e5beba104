// Package pager slices a document into paragraph-bounded frames.
//
// A paragraph boundary is either two consecutive line feeds or a CR LF pair followed by
// another CR LF pair. Scans run left to right and step past a matched pair, so a run of
// four line feeds is two boundaries, never three. All positions are rune offsets.
package pager

// Document is an immutable, rune-addressed text buffer.
type Document struct {
	text []rune
}

// NewDocument copies text into a rune buffer.
func NewDocument(text string) *Document {
	return &Document{text: []rune(text)}
}

// Len returns the document length in runes.
func (d *Document) Len() int {
	return len(d.text)
}

// Slice returns the text in [start, end), clamped to the document.
func (d *Document) Slice(start, end int) string {
	start, end = d.clamp(start), d.clamp(end)
	if end <= start {
		return ""
	}
	return string(d.text[start:end])
}

// RuneAt returns the rune at pos, or 0 when pos is out of range.
func (d *Document) RuneAt(pos int) rune {
	if pos < 0 || pos >= len(d.text) {
		return 0
	}
	return d.text[pos]
}

func (d *Document) clamp(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > len(d.text) {
		return len(d.text)
	}
	return pos
}

// separatorAt returns the length of the paragraph separator starting at pos, or 0.
func (d *Document) separatorAt(pos int) int {
	n := len(d.text)
	if pos+1 < n && d.text[pos] == '\n' && d.text[pos+1] == '\n' {
		return 2
	}
	if pos+3 < n &&
		d.text[pos] == '\r' && d.text[pos+1] == '\n' &&
		d.text[pos+2] == '\r' && d.text[pos+3] == '\n' {
		return 4
	}
	return 0
}

// FrameEnd scans forward from start and returns the position just after the skip-th
// paragraph boundary, or the end of the document when fewer boundaries remain.
// FrameEnd(start, 0) is start.
func (d *Document) FrameEnd(start, skip int) int {
	pos := d.clamp(start)
	found := 0
	for pos < len(d.text) && found < skip {
		if n := d.separatorAt(pos); n > 0 {
			found++
			pos += n
			continue
		}
		pos++
	}
	return pos
}

// ParagraphBoundary returns the first boundary position at or after start, or the end
// of the document when there is none.
func (d *Document) ParagraphBoundary(start int) int {
	for i := d.clamp(start); i+1 < len(d.text); i++ {
		if d.separatorAt(i) > 0 {
			return i
		}
	}
	return len(d.text)
}

// FrameText returns the text in [start, FrameEnd(start, skip)).
func (d *Document) FrameText(start, skip int) string {
	return d.Slice(start, d.FrameEnd(start, skip))
}

// Boundaries lists every boundary position at or after start.
func (d *Document) Boundaries(start int) []int {
	var out []int
	pos := d.clamp(start)
	for {
		b := d.ParagraphBoundary(pos)
		if b >= len(d.text) {
			return out
		}
		out = append(out, b)
		pos = b + d.separatorAt(b)
	}
}

// SkipBlank advances past spaces, tabs, carriage returns and line feeds.
func (d *Document) SkipBlank(pos int) int {
	pos = d.clamp(pos)
	for pos < len(d.text) {
		switch d.text[pos] {
		case ' ', '\t', '\r', '\n':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// SkipInline advances past spaces and tabs only; line breaks stop it.
func (d *Document) SkipInline(pos int) int {
	pos = d.clamp(pos)
	for pos < len(d.text) && (d.text[pos] == ' ' || d.text[pos] == '\t') {
		pos++
	}
	return pos
}

// Frame is a half-open range [Start, End) over a Document.
type Frame struct {
	Start int
	End   int
}

// Len returns the number of runes in the frame.
func (f Frame) Len() int {
	return f.End - f.Start
}

// Empty reports whether the frame holds no content.
func (f Frame) Empty() bool {
	return f.End <= f.Start
}

// Frame returns the next frame at or after start holding the given number of
// paragraphs. Leading blank text is skipped and the frame ends at the separator that
// closes its last paragraph, so the separator itself is never part of a frame.
// A run of blank lines between paragraphs counts as a single gap.
func (d *Document) Frame(start, paragraphs int) Frame {
	s := d.SkipBlank(start)
	pos := s
	for i := 1; i < paragraphs; i++ {
		b := d.ParagraphBoundary(pos)
		if b >= len(d.text) {
			return Frame{Start: s, End: len(d.text)}
		}
		pos = d.SkipBlank(b)
	}
	return Frame{Start: s, End: d.ParagraphBoundary(pos)}
}

// Text returns the text covered by f.
func (d *Document) Text(f Frame) string {
	return d.Slice(f.Start, f.End)
}
