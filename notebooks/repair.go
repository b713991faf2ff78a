package notebooks

import (
	"errors"
	"fmt"
	"strings"
)

// StripTrailingCommas removes commas that are followed only by whitespace and
// then a closing brace or bracket. Commas inside string literals are left
// alone, so cell sources such as "x = [1, 2, ]" survive untouched.
func StripTrailingCommas(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',':
			if closesAfterWhitespace(data[i+1:]) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func closesAfterWhitespace(rest []byte) bool {
	for _, c := range rest {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '}', ']':
			return true
		}
		return false
	}
	return false
}

// truncationSuffixes close off the shapes a notebook usually has when a
// writer stopped partway through a cell.
var truncationSuffixes = []string{
	`}`, `}]}`, `"]}}`, `"]}]}`, `]}]}`,
	`""]}]}`, `":null}]}`, `null}]}`,
}

// CompleteTruncated tries to close a notebook whose text ends early by
// appending each known suffix until one parses. It reports false if none did.
func CompleteTruncated(data []byte) ([]byte, bool) {
	s := strings.TrimRight(string(data), " \t\r\n")
	for _, suffix := range truncationSuffixes {
		candidate := StripTrailingCommas([]byte(s + suffix))
		if _, err := Parse(candidate); err == nil {
			return candidate, true
		}
	}
	return nil, false
}

// ErrInvalidIndent is returned by RepairBytes for a negative indent.
var ErrInvalidIndent = errors.New("indent must not be negative")

// Options control an in-memory repair.
type Options struct {
	Policy Policy
	// Indent is the number of spaces per nesting level in rewritten output.
	Indent int
	// PersistTextFixes rewrites a document that only needed the textual
	// fallback, even when no widget rule fired.
	PersistTextFixes bool
	// CompleteTruncated enables the suffix-completion fallback.
	CompleteTruncated bool
}

// DefaultOptions match what Jupyter writes and the least destructive policy.
func DefaultOptions() Options {
	return Options{
		Policy:           PolicyEnsureState,
		Indent:           1,
		PersistTextFixes: true,
	}
}

// Result describes the outcome of RepairBytes.
type Result struct {
	Rule Rule
	// TextRepaired is set when the structured parse failed and a textual
	// fallback produced the document.
	TextRepaired bool
	// Modified is set when Output should replace the original content.
	Modified bool
	Output   []byte
}

// RepairBytes parses data, falling back to textual repair, applies the
// widget policy and, if anything changed, encodes the new document.
func RepairBytes(data []byte, opts Options) (*Result, error) {
	if opts.Policy == "" {
		opts.Policy = PolicyEnsureState
	}
	if opts.Indent < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndent, opts.Indent)
	}
	doc, textRepaired, err := parseWithFallback(data, opts.CompleteTruncated)
	if err != nil {
		return nil, err
	}
	rule, err := opts.Policy.Apply(doc)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Rule:         rule,
		TextRepaired: textRepaired,
		Modified:     rule != RuleNone || (textRepaired && opts.PersistTextFixes),
	}
	if res.Modified {
		res.Output = MarshalIndent(doc, strings.Repeat(" ", opts.Indent))
	}
	return res, nil
}

func parseWithFallback(data []byte, completeTruncated bool) (*Value, bool, error) {
	doc, err := Parse(data)
	if err == nil {
		return doc, false, nil
	}
	fixed := StripTrailingCommas(data)
	doc, ferr := Parse(fixed)
	if ferr == nil {
		return doc, true, nil
	}
	if completeTruncated {
		if completed, ok := CompleteTruncated(fixed); ok {
			doc, ferr = Parse(completed)
			if ferr == nil {
				return doc, true, nil
			}
		}
	}
	// Report the original error; the fallback's is about text we made up.
	return nil, false, fmt.Errorf("textual repair did not help: %w", err)
}
