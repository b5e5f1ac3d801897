package notify

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

type ChangeTag string

const (
	Equal    ChangeTag = "equal"
	Inserted ChangeTag = "inserted"
	Deleted  ChangeTag = "deleted"
)

// DiffLine is one line of a line-oriented diff, without its newline.
type DiffLine struct {
	Tag  ChangeTag
	Text string
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// Diff computes a line diff turning prev into next.
func Diff(prev, next string) []DiffLine {
	a, b := splitLines(prev), splitLines(next)
	m := difflib.NewMatcherWithJunk(a, b, false, nil)

	var out []DiffLine
	emit := func(tag ChangeTag, lines []string) {
		for _, l := range lines {
			out = append(out, DiffLine{Tag: tag, Text: l})
		}
	}
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			emit(Equal, a[op.I1:op.I2])
		case 'd':
			emit(Deleted, a[op.I1:op.I2])
		case 'i':
			emit(Inserted, b[op.J1:op.J2])
		case 'r':
			emit(Deleted, a[op.I1:op.I2])
			emit(Inserted, b[op.J1:op.J2])
		}
	}
	return out
}

// RenderUnified renders lines with "  ", "+ " and "- " prefixes.
func RenderUnified(lines []DiffLine) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		switch l.Tag {
		case Inserted:
			sb.WriteString("+ ")
		case Deleted:
			sb.WriteString("- ")
		default:
			sb.WriteString("  ")
		}
		sb.WriteString(l.Text)
	}
	return sb.String()
}
