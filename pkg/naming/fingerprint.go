package naming

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/blimu-dev/rpc-gen/pkg/ir"
)

// Fingerprinter computes structural hashes of shapes. Two shapes share a
// fingerprint iff they have the same kind, primitive, literal set, field
// names with required flags and nested structure. Field and literal order do
// not matter; references hash as their target.
//
// Shapes are immutable after normalization, so results are cached by pointer.
// A Fingerprinter is safe for concurrent use.
type Fingerprinter struct {
	mu    sync.RWMutex
	cache map[*ir.Shape]string
}

// NewFingerprinter returns an empty fingerprinter.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{cache: make(map[*ir.Shape]string, 256)}
}

// Fingerprint returns the hex sha256 of the canonical encoding of s.
func (fp *Fingerprinter) Fingerprint(s *ir.Shape) string {
	if s == nil {
		return "absent"
	}
	fp.mu.RLock()
	sum, ok := fp.cache[s]
	fp.mu.RUnlock()
	if ok {
		return sum
	}

	sum = fmt.Sprintf("%x", sha256.Sum256(fp.canonical(s)))

	fp.mu.Lock()
	fp.cache[s] = sum
	fp.mu.Unlock()
	return sum
}

func (fp *Fingerprinter) canonical(s *ir.Shape) []byte {
	s = ir.Resolve(s)
	var w canonicalWriter
	w.str(string(s.Kind))
	switch s.Kind {
	case ir.KindPrimitive:
		w.str(string(s.Primitive))
	case ir.KindLiteral:
		lits := make([]string, 0, len(s.Literals))
		for _, l := range s.Literals {
			lits = append(lits, string(l.Kind)+":"+l.Raw)
		}
		sort.Strings(lits)
		w.count(len(lits))
		for _, l := range lits {
			w.str(l)
		}
	case ir.KindObject:
		fields := make([]ir.Field, len(s.Fields))
		copy(fields, s.Fields)
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		w.count(len(fields))
		for _, f := range fields {
			w.str(f.Name)
			if f.Required {
				w.str("required")
			} else {
				w.str("optional")
			}
			w.str(fp.Fingerprint(f.Shape))
		}
	case ir.KindArray:
		w.str(fp.Fingerprint(s.Elem))
	}
	return w.buf
}

// canonicalWriter length-prefixes every token so that concatenations are unambiguous.
type canonicalWriter struct {
	buf []byte
}

func (w *canonicalWriter) count(n int) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
}

func (w *canonicalWriter) str(s string) {
	w.count(len(s))
	w.buf = append(w.buf, s...)
}
