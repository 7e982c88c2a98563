/*
enum.go - Enumerations for enumerated-integer variables

PURPOSE:
  An Enum is an ordered mapping from integer code to label, used by
  variables of KindEnum. Raw input may name an item either by code or by
  label; labels are matched through a normalized slug (lowercase,
  diacritics stripped, word separators collapsed), so "Marié", "marie"
  and "MARIE " all resolve to the same code.

LAZY INDEX:
  The slug index is built once, on first label lookup, and cached for the
  lifetime of the Enum. Enums are immutable after construction, so the
  index never invalidates.
*/
package engine

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// ENUM - Ordered code/label mapping with lazy slug index
// =============================================================================

// EnumItem pairs an integer code with its human-readable label.
type EnumItem struct {
	Code  int32
	Label string
}

// Enum is an immutable enumeration. Construct with NewEnum.
type Enum struct {
	items  []EnumItem // sorted by code
	byCode map[int32]string

	once   sync.Once
	bySlug map[string]int32
}

// NewEnum builds an enumeration from its items. Items are kept in code
// order regardless of argument order. Duplicate codes keep the first
// label seen.
func NewEnum(items ...EnumItem) *Enum {
	e := &Enum{byCode: make(map[int32]string, len(items))}
	for _, it := range items {
		if _, dup := e.byCode[it.Code]; dup {
			continue
		}
		e.byCode[it.Code] = it.Label
		e.items = append(e.items, it)
	}
	sort.Slice(e.items, func(i, j int) bool { return e.items[i].Code < e.items[j].Code })
	return e
}

// Items returns the enumeration in code order. The returned slice is a copy.
func (e *Enum) Items() []EnumItem {
	out := make([]EnumItem, len(e.items))
	copy(out, e.items)
	return out
}

// Label returns the label for a code.
func (e *Enum) Label(code int32) (string, bool) {
	label, ok := e.byCode[code]
	return label, ok
}

// Has reports whether code belongs to the enumeration.
func (e *Enum) Has(code int32) bool {
	_, ok := e.byCode[code]
	return ok
}

// LowestCode returns the smallest defined code. It is the last-resort
// fallback for invalid enum input (see Variable.ValidateAndCoerce).
func (e *Enum) LowestCode() int32 {
	if len(e.items) == 0 {
		return 0
	}
	return e.items[0].Code
}

// CodeForLabel resolves a label to its code through the slug index.
// The index is built lazily on first use and cached.
func (e *Enum) CodeForLabel(label string) (int32, bool) {
	e.once.Do(func() {
		e.bySlug = make(map[string]int32, len(e.items))
		for _, it := range e.items {
			slug := Slugify(it.Label)
			if _, dup := e.bySlug[slug]; !dup {
				e.bySlug[slug] = it.Code
			}
		}
	})
	code, ok := e.bySlug[Slugify(label)]
	return code, ok
}

// =============================================================================
// SLUGIFY - Case/diacritic/space-insensitive label normalization
// =============================================================================

// stripMarks decomposes to NFD, drops combining marks, then recomposes.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify normalizes a label for lookup: diacritics removed, lowercased,
// runs of non-alphanumeric characters collapsed to single underscores.
func Slugify(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		} else {
			pendingSep = true
		}
	}
	return b.String()
}
