// Package parser turns uploaded files into headers plus rows of strings.
//
// Three input shapes are supported: delimited text (comma, tab, semicolon or
// pipe), JSON documents (array, {items:[...]}, {data:[...]}, or a single
// object), and free text with an optional capture-group pattern. Anything
// else fails fast with ErrUnsupportedFormat before a parse is attempted.
//
// Parse failures are file-scoped: the caller decides per file whether to
// abort a batch or skip the one file.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Table is the uniform parse result: a header row and data rows of string
// cells. Rows are padded to the header width so every cell is addressable;
// a missing trailing cell is the empty string, not an absence.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Raw reassembles the table as uninterpreted rows, header line first. The
// import wizard works over raw rows so the user can re-pick the header row.
func (t *Table) Raw() [][]string {
	if len(t.Headers) == 0 {
		return t.Rows
	}
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Headers)
	out = append(out, t.Rows...)
	return out
}

// ErrUnsupportedFormat marks a file extension outside the accepted set.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptyInput marks input with no parsable content.
var ErrEmptyInput = errors.New("input is empty")

// Error is a file-scoped parse failure.
type Error struct {
	File string
	Err  error
}

func (e *Error) Error() string {
	if e.File == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options control format-specific parsing of one file.
type Options struct {
	// Delimiter for delimited text. Zero means comma.
	Delimiter rune
	// Pattern is the optional capture-group regex for free text.
	Pattern string
}

// File decodes and parses one uploaded file, dispatching on its extension:
// .csv/.tsv/.txt delimited (tab for .tsv), .json JSON, .log free text.
// Unsupported extensions fail with ErrUnsupportedFormat before any parsing.
func File(name string, data []byte, opt Options) (*Table, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, &Error{File: name, Err: err}
	}

	var (
		t        *Table
		parseErr error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		delim := opt.Delimiter
		if delim == 0 {
			delim = ','
		}
		t, parseErr = Delimited(text, delim)
	case ".tsv":
		t, parseErr = Delimited(text, '\t')
	case ".txt":
		delim := opt.Delimiter
		if delim == 0 {
			t, parseErr = FreeText(text, opt.Pattern)
		} else {
			t, parseErr = Delimited(text, delim)
		}
	case ".json":
		t, parseErr = JSONDocument(text)
	case ".log":
		t, parseErr = FreeText(text, opt.Pattern)
	default:
		return nil, &Error{File: name, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))}
	}

	if parseErr != nil {
		return nil, &Error{File: name, Err: parseErr}
	}
	return t, nil
}
