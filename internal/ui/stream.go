package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/kodescruxx/kx-cli/internal/api"
)

// RenderStream reads tokens from a StreamDelta channel and writes them
// to w in real-time. It prepends prefix to the first token (e.g. "  ")
// for indentation and to the start of every following line. Returns the
// full concatenated text and any error.
func RenderStream(w io.Writer, ch <-chan api.StreamDelta, prefix string) (string, error) {
	var full strings.Builder
	first := true
	atLineStart := false

	for delta := range ch {
		if delta.Err != nil {
			if full.Len() > 0 {
				fmt.Fprintln(w)
			}
			return full.String(), delta.Err
		}
		if delta.Done {
			break
		}
		if delta.Token == "" {
			continue
		}

		if first {
			fmt.Fprint(w, prefix)
			first = false
		}

		fmt.Fprint(w, indent(delta.Token, prefix, &atLineStart))
		full.WriteString(delta.Token)
	}

	// Ensure we end with a newline.
	if full.Len() > 0 && !strings.HasSuffix(full.String(), "\n") {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	return strings.TrimSpace(full.String()), nil
}

// RenderText writes a complete answer the way RenderStream would have
// streamed it.
func RenderText(w io.Writer, text, prefix string) {
	atLineStart := false
	fmt.Fprint(w, prefix)
	fmt.Fprint(w, indent(strings.TrimRight(text, "\n"), prefix, &atLineStart))
	fmt.Fprint(w, "\n\n")
}

// indent inserts prefix after every newline in token. A newline at the very
// end is remembered in atLineStart so the prefix lands before the next token
// instead of dangling after the last line.
func indent(token, prefix string, atLineStart *bool) string {
	if prefix == "" {
		return token
	}
	var b strings.Builder
	for _, r := range token {
		if *atLineStart && r != '\n' {
			b.WriteString(prefix)
		}
		*atLineStart = r == '\n'
		b.WriteRune(r)
	}
	return b.String()
}
