package kpi

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/reportlens/internal/domain/kpi/expr"
)

// Match reports whether a reported component name refers to c.
// Case-insensitive substring containment in either direction against the canonical
// name or any alternate. Overlapping names ("revenue" vs "revenue growth") can
// match the wrong line item; BestMatch prefers exact hits to reduce that.
func Match(c Component, reported string) bool {
	r := strings.ToLower(strings.TrimSpace(reported))
	if r == "" {
		return false
	}
	for _, n := range c.Names() {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if strings.Contains(r, n) || strings.Contains(n, r) {
			return true
		}
	}
	return false
}

func exactMatch(c Component, reported string) bool {
	r := strings.TrimSpace(reported)
	for _, n := range c.Names() {
		if strings.EqualFold(strings.TrimSpace(n), r) {
			return true
		}
	}
	return false
}

// BestMatch picks the value for c among one document's extracted values.
// An exact name hit always beats a substring hit, even when it is absent, so a
// component nothing was found for never borrows a sibling's value. Within the
// same kind of hit, present values beat absent ones.
func BestMatch(c Component, values []ComponentValue) (ComponentValue, bool) {
	best, bestRank := ComponentValue{}, 0
	for _, v := range values {
		rank := 0
		switch {
		case exactMatch(c, v.ComponentName):
			rank = 3
		case Match(c, v.ComponentName):
			rank = 1
		default:
			continue
		}
		if !v.Absent() {
			rank++
		}
		if rank > bestRank {
			best, bestRank = v, rank
		}
	}
	return best, bestRank > 0
}

// Bind maps each component identifier to its coerced value. Unmatched components are 0.
// When values are aligned with f.Components (as ExtractAll returns them), each
// component first takes its own cell; name matching is the fallback.
func Bind(f Formula, values []ComponentValue) map[string]float64 {
	aligned := len(values) == len(f.Components)
	env := make(map[string]float64, len(f.Components))
	for i, c := range f.Components {
		if aligned && Match(c, values[i].ComponentName) {
			env[c.Identifier()] = values[i].Number()
			continue
		}
		if v, ok := BestMatch(c, values); ok {
			env[c.Identifier()] = v.Number()
		} else {
			env[c.Identifier()] = 0
		}
	}
	return env
}

// Identifier lowercases name and collapses runs of non-alphanumerics into '_'.
func Identifier(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	id := b.String()
	if id != "" && id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}
	return id
}

// NormalizeExpression rewrites component names and alternates appearing in the
// expression into identifiers. Longest names are replaced first, matching is
// case-insensitive and only at identifier boundaries.
func NormalizeExpression(expression string, components []Component) string {
	type alias struct{ name, id string }
	var aliases []alias
	for _, c := range components {
		id := c.Identifier()
		for _, n := range c.Names() {
			if n = strings.TrimSpace(n); n != "" {
				aliases = append(aliases, alias{name: n, id: id})
			}
		}
	}
	sort.SliceStable(aliases, func(i, j int) bool { return len(aliases[i].name) > len(aliases[j].name) })

	out := expression
	for _, a := range aliases {
		out = replaceFold(out, a.name, a.id)
	}
	return out
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func replaceFold(s, old, repl string) string {
	if len(old) > len(s) {
		return s
	}
	var b strings.Builder
	i := 0
	for i <= len(s)-len(old) {
		if strings.EqualFold(s[i:i+len(old)], old) &&
			(i == 0 || !isIdentByte(s[i-1])) &&
			(i+len(old) == len(s) || !isIdentByte(s[i+len(old)])) {
			b.WriteString(repl)
			i += len(old)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	b.WriteString(s[i:])
	return b.String()
}

// foldName reduces a name to its lowercase letters and digits, so
// "currentAssets", "current_assets" and "Current Assets" compare equal.
func foldName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Resolver maps identifiers written in any separator or case style onto component
// identifiers. Folded forms shared by two components resolve to neither.
func Resolver(components []Component) expr.Resolve {
	exact := make(map[string]bool, len(components))
	folded := make(map[string]string)
	ambiguous := make(map[string]bool)
	for _, c := range components {
		id := c.Identifier()
		exact[id] = true
		for _, n := range append(c.Names(), id) {
			k := foldName(n)
			if k == "" || ambiguous[k] {
				continue
			}
			if prev, ok := folded[k]; ok && prev != id {
				delete(folded, k)
				ambiguous[k] = true
				continue
			}
			folded[k] = id
		}
	}
	return func(name string) (string, bool) {
		if exact[name] {
			return name, true
		}
		id, ok := folded[foldName(name)]
		return id, ok
	}
}
