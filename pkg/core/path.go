package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup extracts a value from decoded GraphQL data using a path.
// Supports:
// - Nested fields: "info.versions.core.unraid"
// - Array indices: "disks[0]", "disks[-1]" (negative counts from the end)
// - Array wildcards: "array.disks[*].name"
func Lookup(data any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	return walk(data, segments)
}

type segmentKind int

const (
	fieldSegment segmentKind = iota
	indexSegment
	wildcardSegment
)

type segment struct {
	kind  segmentKind
	field string
	index int
}

// parsePath splits a path into field, index and wildcard segments.
func parsePath(path string) ([]segment, error) {
	var segments []segment

	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}

		name, rest, hasBracket := strings.Cut(part, "[")
		if name != "" {
			segments = append(segments, segment{kind: fieldSegment, field: name})
		}
		if !hasBracket {
			continue
		}

		rest = "[" + rest
		for rest != "" {
			if rest[0] != '[' {
				return nil, fmt.Errorf("unexpected %q after bracket in %q", rest, part)
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("unclosed bracket in %q", part)
			}
			inner := rest[1:end]
			rest = rest[end+1:]

			if inner == "*" {
				segments = append(segments, segment{kind: wildcardSegment})
				continue
			}
			idx, err := strconv.Atoi(inner)
			if err != nil {
				return nil, fmt.Errorf("invalid array index %q", inner)
			}
			segments = append(segments, segment{kind: indexSegment, index: idx})
		}
	}
	return segments, nil
}

func walk(current any, segments []segment) (any, bool) {
	for i, seg := range segments {
		switch seg.kind {
		case fieldSegment:
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			if current, ok = m[seg.field]; !ok {
				return nil, false
			}

		case indexSegment:
			arr, ok := current.([]any)
			if !ok {
				return nil, false
			}
			idx := seg.index
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]

		case wildcardSegment:
			arr, ok := current.([]any)
			if !ok {
				return nil, false
			}
			if i == len(segments)-1 {
				return arr, true
			}
			var out []any
			for _, elem := range arr {
				v, ok := walk(elem, segments[i+1:])
				if !ok {
					continue
				}
				// nested wildcards flatten
				if nested, isArr := v.([]any); isArr && hasWildcard(segments[i+1:]) {
					out = append(out, nested...)
				} else {
					out = append(out, v)
				}
			}
			return out, len(out) > 0
		}
	}
	return current, true
}

func hasWildcard(segments []segment) bool {
	for _, s := range segments {
		if s.kind == wildcardSegment {
			return true
		}
	}
	return false
}
