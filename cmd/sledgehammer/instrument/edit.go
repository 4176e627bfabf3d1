// Package instrument - Source text edits.
package instrument

import (
	"bytes"
	"go/token"
	"sort"
)

// sourceEdit collects insertions into a file's original text, addressed by
// the token positions of its parsed AST.
//
// Inserting trace source next to the statements it belongs to, instead of
// printing synthetic AST nodes, keeps every comment of the file at its
// original position.
type sourceEdit struct {
	fset    *token.FileSet
	content []byte
	inserts []insertion
}

type insertion struct {
	offset int
	seq    int
	text   string
}

func newSourceEdit(fset *token.FileSet, content []byte) *sourceEdit {
	return &sourceEdit{
		fset:    fset,
		content: content,
	}
}

// Insert adds text before the byte at pos. Insertions at the same position
// keep the order in which they were added.
func (e *sourceEdit) Insert(pos token.Pos, text string) {
	e.inserts = append(e.inserts, insertion{
		offset: e.fset.Position(pos).Offset,
		seq:    len(e.inserts),
		text:   text,
	})
}

// HasEdits reports whether anything was inserted.
func (e *sourceEdit) HasEdits() bool {
	return len(e.inserts) > 0
}

// Bytes returns the edited content. The original content is not modified.
func (e *sourceEdit) Bytes() []byte {
	inserts := make([]insertion, len(e.inserts))
	copy(inserts, e.inserts)
	sort.Slice(inserts, func(i, j int) bool {
		if inserts[i].offset != inserts[j].offset {
			return inserts[i].offset < inserts[j].offset
		}
		return inserts[i].seq < inserts[j].seq
	})

	var buf bytes.Buffer
	last := 0
	for _, ins := range inserts {
		buf.Write(e.content[last:ins.offset])
		buf.WriteString(ins.text)
		last = ins.offset
	}
	buf.Write(e.content[last:])
	return buf.Bytes()
}
