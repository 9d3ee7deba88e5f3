package model

import (
	"fmt"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrorDetail is one validation failure, flattened to something a user
// can act on without reading raw CUE output.
type CueErrorDetail struct {
	Path    string // e.g. limits.rate_quota
	Code    string // missing_required | unknown_field | type_mismatch | conflicting_values | validation_error
	Message string
	Pos     CueErrorPosition
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

func (c CueErrorDetail) String() string {
	s := c.Message
	if c.Path != "" {
		s = c.Path + ": " + s
	}
	if c.Pos.Filename != "" {
		s = fmt.Sprintf("%s (%s:%d:%d)", s, c.Pos.Filename, c.Pos.Line, c.Pos.Column)
	}
	return s
}

var (
	reIncomplete = regexp.MustCompile(`(?i)incomplete value`)
	reNotAllowed = regexp.MustCompile(`(?i)not allowed|unknown field`)
	reConflict   = regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`)
	reMismatch   = regexp.MustCompile(`(?i)expected .* got .*|invalid value|out of bound|mismatched types`)
)

// CueErrDetails turns the error returned by LoadConfig into per-field
// messages. Non-CUE errors yield a single entry with the raw text.
func CueErrDetails(err error) []string {
	if err == nil {
		return nil
	}

	seen := make(map[CueErrorPosition]struct{})
	var out []string
	for _, e := range cueerrors.Errors(err) {
		raw, _ := e.Msg()
		path := normalizePath(e.Path())
		code, msg := classify(raw, path)

		pos := position(e)
		if _, ok := seen[pos]; pos.Filename != "" && ok {
			continue
		}
		seen[pos] = struct{}{}

		detail := CueErrorDetail{
			Path:    path,
			Code:    code,
			Message: msg,
			Pos:     pos,
		}
		out = append(out, detail.String())
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

func classify(raw, path string) (code, msg string) {
	switch {
	case reNotAllowed.MatchString(raw):
		return "unknown_field", fmt.Sprintf("field %s is not allowed", last(path))
	case reIncomplete.MatchString(raw):
		return "missing_required", fmt.Sprintf("field %s is required", last(path))
	case reConflict.MatchString(raw):
		return "conflicting_values", fmt.Sprintf("conflicting values for %s", last(path))
	case reMismatch.MatchString(raw):
		return "type_mismatch", fmt.Sprintf("field %s has wrong type or value", last(path))
	default:
		return "validation_error", raw
	}
}

func position(err cueerrors.Error) CueErrorPosition {
	for _, r := range cueerrors.Positions(err) {
		if r.Filename() == "" {
			continue
		}
		return CueErrorPosition{
			Filename: r.Filename(),
			Line:     r.Line(),
			Column:   r.Column(),
		}
	}
	var zero CueErrorPosition
	return zero
}

func normalizePath(p []string) string {
	if len(p) == 0 {
		return ""
	}
	// drop the leading #Config definition
	if strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

func last(p string) string {
	if p == "" {
		return p
	}
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return p[i+1:]
	}
	return p
}
