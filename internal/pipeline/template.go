// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"
	"strings"
)

// =============================================================================
// INSTRUCTION TEMPLATES
// =============================================================================

// Templates use {name} placeholders. "{{" and "}}" produce literal braces.
// Names start with a letter or underscore and continue with letters, digits
// or underscores.

type segment struct {
	text        string
	placeholder bool
}

// Template is a parsed instruction template.
type Template struct {
	raw      string
	segments []segment
}

// ParseTemplate parses s. It fails on an unterminated "{", a stray "}" or an
// invalid placeholder name.
func ParseTemplate(s string) (Template, error) {
	var segs []segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return Template{}, fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			name := s[i+1 : i+1+end]
			if !validName(name) {
				return Template{}, fmt.Errorf("invalid placeholder name %q at offset %d", name, i)
			}
			flush()
			segs = append(segs, segment{text: name, placeholder: true})
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return Template{}, fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return Template{raw: s, segments: segs}, nil
}

// String returns the template source.
func (t Template) String() string {
	return t.raw
}

// Placeholders returns the distinct placeholder names in order of first use.
func (t Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, seg := range t.segments {
		if seg.placeholder && !seen[seg.text] {
			seen[seg.text] = true
			names = append(names, seg.text)
		}
	}
	return names
}

// Render substitutes every placeholder from values. Substituted text is
// inserted verbatim and never re-parsed.
func (t Template) Render(values map[string]string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(t.raw))
	for _, seg := range t.segments {
		if !seg.placeholder {
			sb.WriteString(seg.text)
			continue
		}
		v, ok := values[seg.text]
		if !ok {
			return "", fmt.Errorf("no value for placeholder %q", seg.text)
		}
		sb.WriteString(v)
	}
	return sb.String(), nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
