package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FreeText parses unstructured text line by line.
//
// Without a pattern every non-blank line becomes a {line_number, content}
// row. With a capture-group regex, only matching lines produce rows; fields
// are named field_1..field_n from the capture groups, still tagged with
// their line_number. Line numbers are 1-based positions in the original
// text, not in the filtered output.
func FreeText(text string, pattern string) (*Table, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	if pattern == "" {
		t := &Table{Headers: []string{"line_number", "content"}}
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			t.Rows = append(t.Rows, []string{strconv.Itoa(i + 1), line})
		}
		return t, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	groups := re.NumSubexp()
	if groups == 0 {
		return nil, fmt.Errorf("pattern has no capture groups")
	}

	headers := make([]string, 0, groups+1)
	headers = append(headers, "line_number")
	for i := 1; i <= groups; i++ {
		headers = append(headers, "field_"+strconv.Itoa(i))
	}

	t := &Table{Headers: headers}
	for i, line := range lines {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		row := make([]string, 0, groups+1)
		row = append(row, strconv.Itoa(i+1))
		row = append(row, m[1:]...)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
