package mve

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// section is one [name] block of an ini file.
type section map[string]string

// parseINI reads the "key = value" sections of a meta.ini file. Comments
// start with '#' or ';'. Keys are case-insensitive as in MVE.
func parseINI(r io.Reader) (map[string]section, error) {
	sections := make(map[string]section)
	var cur section
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "", text[0] == '#', text[0] == ';':
			continue
		case text[0] == '[':
			end := strings.IndexByte(text, ']')
			if end < 0 {
				return nil, fmt.Errorf("line %d: unterminated section header", line)
			}
			name := strings.ToLower(strings.TrimSpace(text[1:end]))
			if cur = sections[name]; cur == nil {
				cur = make(section)
				sections[name] = cur
			}
		default:
			if cur == nil {
				return nil, fmt.Errorf("line %d: key outside of a section", line)
			}
			key, value, ok := strings.Cut(text, "=")
			if !ok {
				key, value, ok = strings.Cut(text, ":")
			}
			if !ok {
				return nil, fmt.Errorf("line %d: missing '='", line)
			}
			cur[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}
	return sections, sc.Err()
}

func (s section) float(key string) (float64, error) {
	v, ok := s[key]
	if !ok {
		return 0, fmt.Errorf("missing key %q", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("key %q: %w", key, err)
	}
	return f, nil
}

func (s section) floats(key string, n int) ([]float64, error) {
	v, ok := s[key]
	if !ok {
		return nil, fmt.Errorf("missing key %q", key)
	}
	fields := strings.Fields(v)
	if len(fields) != n {
		return nil, fmt.Errorf("key %q: want %d values, have %d", key, n, len(fields))
	}
	out := make([]float64, n)
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out[i] = x
	}
	return out, nil
}
