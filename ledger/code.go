/*
code.go - Account code value type

PURPOSE:
  Account codes are hierarchical, dot-segmented and zero-padded
  ("1", "1.01", "1.01.003"). Modeling them as a value type with explicit
  parse/format/compare operations removes the ambiguity of ad hoc string
  slicing: prefix checks, child derivation and sibling ordering all go
  through here.

RULES:
  - One or more segments separated by '.'.
  - Every segment is digits only, 1..6 characters.
  - A child's code is its parent's code plus one segment.
  - Sibling order is numeric per segment, so "1.2" < "1.10" even though
    the strings compare the other way.

SEE ALSO:
  - accounts.go: uses ChildOf/NextChild when creating accounts
*/
package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AccountCode is a validated hierarchical account code.
type AccountCode string

const maxCodeSegmentLen = 6

// ParseAccountCode validates s and returns it as an AccountCode.
func ParseAccountCode(s string) (AccountCode, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty code", ErrInvalidAccountCode)
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidAccountCode, s)
		}
		if len(seg) > maxCodeSegmentLen {
			return "", fmt.Errorf("%w: segment %q too long in %q", ErrInvalidAccountCode, seg, s)
		}
		for _, r := range seg {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("%w: non-digit segment %q in %q", ErrInvalidAccountCode, seg, s)
			}
		}
	}
	return AccountCode(s), nil
}

func (c AccountCode) String() string { return string(c) }

// Segments returns the code split on '.'.
func (c AccountCode) Segments() []string {
	return strings.Split(string(c), ".")
}

// Depth returns the number of segments (1 = root level).
func (c AccountCode) Depth() int {
	return len(c.Segments())
}

// ChildOf reports whether c is an immediate child of parent.
func (c AccountCode) ChildOf(parent AccountCode) bool {
	cs, ps := c.Segments(), parent.Segments()
	if len(cs) != len(ps)+1 {
		return false
	}
	return strings.HasPrefix(string(c), string(parent)+".")
}

// DescendantOf reports whether c sits anywhere under parent.
func (c AccountCode) DescendantOf(parent AccountCode) bool {
	return len(c) > len(parent) && strings.HasPrefix(string(c), string(parent)+".")
}

// Parent returns the code with the last segment removed, or "" for a
// root-level code.
func (c AccountCode) Parent() AccountCode {
	i := strings.LastIndex(string(c), ".")
	if i < 0 {
		return ""
	}
	return c[:i]
}

// Compare orders codes numerically segment by segment, so "1.2" sorts
// before "1.10" regardless of zero-padding.
func (c AccountCode) Compare(other AccountCode) int {
	a, b := c.Segments(), other.Segments()
	for i := 0; i < len(a) && i < len(b); i++ {
		av, _ := strconv.Atoi(a[i])
		bv, _ := strconv.Atoi(b[i])
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// NextChild derives the next child code under c given the existing
// sibling codes. The new segment is the highest existing sibling segment
// plus one, zero-padded to the widest sibling segment (minimum 2 digits),
// so generated siblings stay aligned even when earlier ones were entered
// by hand without padding.
func (c AccountCode) NextChild(siblings []AccountCode) AccountCode {
	max, width := 0, 2
	for _, sib := range siblings {
		if !sib.ChildOf(c) && !(c == "" && sib.Depth() == 1) {
			continue
		}
		segs := sib.Segments()
		last := segs[len(segs)-1]
		if n, err := strconv.Atoi(last); err == nil && n > max {
			max = n
		}
		if len(last) > width {
			width = len(last)
		}
	}
	seg := fmt.Sprintf("%0*d", width, max+1)
	if c == "" {
		return AccountCode(seg)
	}
	return AccountCode(string(c) + "." + seg)
}

// SortAccountsByCode orders accounts by Compare. Stores use it instead
// of SQL string ordering, which mis-sorts unpadded codes.
func SortAccountsByCode(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Code.Compare(accounts[j].Code) < 0
	})
}
