// Package record decodes delimited numeric text lines into fixed-width rows.
// A row carries one value per configured label; lines that cannot produce a
// full row are rejected with an error the acquisition loop absorbs.
package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Row is one decoded record: an ordered, fixed-width tuple of values.
type Row []float64

// Filter is a text transform applied to each raw line before parsing.
// User-supplied filters run behind Apply so a misbehaving one cannot take
// down the acquisition loop.
type Filter func(string) string

// Identity returns the line unchanged. It is the default filter.
func Identity(line string) string { return line }

// Replacer builds a Filter that applies ordered old/new replacement pairs,
// e.g. stripping a "Quaternion:" prefix or rewriting "nan" before parsing.
func Replacer(oldnew ...string) Filter {
	r := strings.NewReplacer(oldnew...)
	return r.Replace
}

// Apply invokes the filter on line, converting a panic inside the filter
// into an error so the caller can drop the line and carry on.
func Apply(f Filter, line string) (filtered string, err error) {
	if f == nil {
		return line, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("filter panicked on line %q: %v", line, r)
		}
	}()
	return f(line), nil
}

// ErrTooFewValues reports a line that produced fewer numeric tokens than the
// parser's width.
var ErrTooFewValues = errors.New("record: too few numeric values")

// Parser splits a filtered line on a delimiter and conforms the numeric
// tokens to the width fixed by its label set.
type Parser struct {
	labels []string
	delim  string
}

// NewParser creates a Parser for the given label set. The number of labels
// fixes the row width. An empty delimiter defaults to a comma.
func NewParser(labels []string, delim string) *Parser {
	if delim == "" {
		delim = ","
	}
	return &Parser{labels: labels, delim: delim}
}

// Labels returns a copy of the ordered label set. Callers may mutate the
// returned slice freely.
func (p *Parser) Labels() []string {
	return append([]string(nil), p.labels...)
}

// Width returns the required number of values per row.
func (p *Parser) Width() int { return len(p.labels) }

// Parse decodes one line into a Row of exactly Width values.
//
// Tokens are trimmed of surrounding whitespace. Empty tokens, as produced by
// stray or duplicated delimiters, are neglected. Numeric tokens beyond the
// width are discarded. A non-empty token that fails numeric parsing rejects
// the whole line; so does a line yielding fewer than Width numeric tokens.
// Partial rows are never returned.
func (p *Parser) Parse(line string) (Row, error) {
	width := p.Width()
	row := make(Row, 0, width)

	for _, token := range strings.Split(line, p.delim) {
		if len(row) == width {
			break
		}
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, fmt.Errorf("record: invalid numeric token %q in line %q", token, line)
		}
		row = append(row, v)
	}

	if len(row) < width {
		return nil, fmt.Errorf("%w: got %d of %d in line %q", ErrTooFewValues, len(row), width, line)
	}
	return row, nil
}
