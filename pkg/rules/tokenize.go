// Package rules implements the rule language attached to cues: the line
// tokenizer, the condition and instruction variants, and condition
// evaluation against live game state.
package rules

import (
	"fmt"
	"strings"
)

const (
	escapeMarker = `\`
	openBracket  = "["
	closeBracket = "]"
)

// Tokenize splits one rule line into tokens.
//
// A token starting with a backslash is taken literally with the backslash
// removed. A token starting with "[" opens a quoted run that is joined with
// single spaces until a token ends with an unescaped "]". Escaped "\]"
// sequences inside the run are unescaped and do not close it. The outer
// brackets are dropped.
func Tokenize(line string) ([]string, error) {
	fields := strings.Fields(line)
	tokens := make([]string, 0, len(fields))

	for i := 0; i < len(fields); i++ {
		field := fields[i]
		switch {
		case strings.HasPrefix(field, escapeMarker):
			tokens = append(tokens, field[len(escapeMarker):])
		case strings.HasPrefix(field, openBracket):
			run, last, err := joinBracketed(fields, i)
			if err != nil {
				return nil, fmt.Errorf("tokenize %q: %w", line, err)
			}
			tokens = append(tokens, run)
			i = last
		default:
			tokens = append(tokens, field)
		}
	}
	return tokens, nil
}

// joinBracketed consumes fields[start:] up to the field that closes the run
// and returns the joined text plus the index of the closing field.
func joinBracketed(fields []string, start int) (string, int, error) {
	parts := make([]string, 0, 4)
	for i := start; i < len(fields); i++ {
		part := fields[i]
		if i == start {
			part = part[len(openBracket):]
		}
		if closesRun(part) {
			part = strings.TrimSuffix(part, closeBracket)
			parts = append(parts, unescapeClose(part))
			joined := strings.Join(parts, " ")
			if strings.TrimSpace(joined) == "" {
				return "", i, ErrEmptyBracket
			}
			return joined, i, nil
		}
		parts = append(parts, unescapeClose(part))
	}
	return "", len(fields) - 1, ErrUnterminatedBracket
}

func closesRun(part string) bool {
	return strings.HasSuffix(part, closeBracket) && !strings.HasSuffix(part, escapeMarker+closeBracket)
}

func unescapeClose(part string) string {
	return strings.ReplaceAll(part, escapeMarker+closeBracket, closeBracket)
}

// quoteToken renders a token so that Tokenize reads it back unchanged.
func quoteToken(tok string) string {
	switch {
	case strings.ContainsAny(tok, " \t"):
		return openBracket + strings.ReplaceAll(tok, closeBracket, escapeMarker+closeBracket) + closeBracket
	case strings.HasPrefix(tok, escapeMarker), strings.HasPrefix(tok, openBracket):
		return escapeMarker + tok
	default:
		return tok
	}
}

// JoinTokens is the inverse of Tokenize.
func JoinTokens(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = quoteToken(t)
	}
	return strings.Join(quoted, " ")
}
