package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Blank is the CTC blank class index.
const Blank = 0

// Charset maps model classes to text. Class 0 is the CTC blank, classes
// 1..len(Tokens) are the dictionary lines in order, and the final class is a
// space when the model was trained with one.
type Charset struct {
	Tokens   []string
	UseSpace bool
}

// NewCharset builds a charset from tokens.
func NewCharset(tokens []string, useSpace bool) *Charset {
	return &Charset{Tokens: tokens, UseSpace: useSpace}
}

// LoadCharset reads a dictionary with one token per line. A UTF-8 BOM on the
// first line is stripped. Lines are not trimmed since a token may itself be
// whitespace; only their line endings are removed.
func LoadCharset(path string, useSpace bool) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	cs, err := ReadCharset(f, useSpace)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}

// ReadCharset parses a dictionary from r.
func ReadCharset(r io.Reader, useSpace bool) (*Charset, error) {
	scanner := bufio.NewScanner(r)
	tokens := make([]string, 0, 512)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	return NewCharset(tokens, useSpace), nil
}

// Size is the number of model classes, blank and space included.
func (c *Charset) Size() int {
	n := len(c.Tokens) + 1
	if c.UseSpace {
		n++
	}
	return n
}

// Token returns the text for class idx, or "" for the blank and unknown
// classes.
func (c *Charset) Token(idx int) string {
	switch {
	case idx <= Blank:
		return ""
	case idx <= len(c.Tokens):
		return c.Tokens[idx-1]
	case c.UseSpace && idx == len(c.Tokens)+1:
		return " "
	default:
		return ""
	}
}

// Text joins the tokens for indices.
func (c *Charset) Text(indices []int) string {
	var b strings.Builder
	for _, idx := range indices {
		b.WriteString(c.Token(idx))
	}
	return b.String()
}
