package page

import "strings"

// Split separates a source file into its metadata header and body.
//
// The header is the longest prefix of non-empty lines starting at the first
// line. The first empty line (after trimming whitespace) terminates the
// header and belongs to neither part; everything after it, including further
// empty lines, is the body. A file with no empty line is all header and has
// an empty body.
func Split(content string) (header, body string) {
	lines := strings.Split(content, "\n")

	boundary := len(lines)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			boundary = i
			break
		}
	}

	header = strings.Join(lines[:boundary], "\n")
	if boundary >= len(lines) {
		return header, ""
	}
	return header, strings.Join(lines[boundary+1:], "\n")
}
