// Package normalizer pulls the structured record out of a worker's raw text.
//
// Workers are asked to answer with a bare JSON object but routinely wrap it in
// prose or a markdown fence. Normalize looks for a ```json fenced block first
// and then for the span from the first '{' to the last '}'. Anything that does
// not parse as a JSON object fails with a typed *Error; no field is ever read
// out of text that did not parse.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoJSONFound   = errors.New("worker did not return a JSON object")
	ErrMalformedJSON = errors.New("worker returned malformed JSON")
)

type Kind int

const (
	NoJSONFound Kind = iota + 1
	MalformedJSON
)

func (k Kind) String() string {
	switch k {
	case NoJSONFound:
		return "NoJSONFound"
	case MalformedJSON:
		return "MalformedJSON"
	}
	return "Unknown"
}

// Error carries the text that was examined so the audit log can show it.
// For NoJSONFound Candidate is the whole raw output.
type Error struct {
	Kind      Kind
	Candidate string
	Err       error
}

func (e *Error) Error() string {
	base := ErrNoJSONFound.Error()
	if e.Kind == MalformedJSON {
		base = ErrMalformedJSON.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNoJSONFound:
		return e.Kind == NoJSONFound
	case ErrMalformedJSON:
		return e.Kind == MalformedJSON
	}
	return false
}

func (e *Error) Unwrap() error { return e.Err }

var fencedJSON = regexp.MustCompile("(?is)```json[ \\t]*\\r?\\n?(.*?)```")

// Normalize returns the JSON object found in raw.
func Normalize(raw string) (json.RawMessage, error) {
	var fenced string
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		fenced = strings.TrimSpace(m[1])
		if rec, err := parseObject(fenced); err == nil {
			return rec, nil
		}
	}

	span, ok := braceSpan(raw)
	if !ok {
		if fenced != "" {
			_, err := parseObject(fenced)
			return nil, &Error{Kind: MalformedJSON, Candidate: fenced, Err: err}
		}
		return nil, &Error{Kind: NoJSONFound, Candidate: raw}
	}
	rec, err := parseObject(span)
	if err != nil {
		candidate := span
		if fenced != "" {
			candidate = fenced
		}
		return nil, &Error{Kind: MalformedJSON, Candidate: candidate, Err: err}
	}
	return rec, nil
}

// Decode normalizes raw and unmarshals the record into T. A record whose
// fields do not fit T is reported as MalformedJSON.
func Decode[T any](raw string) (*T, error) {
	rec, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := Unmarshal(rec, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Unmarshal decodes an already normalized record into v.
func Unmarshal(rec json.RawMessage, v any) error {
	if err := json.Unmarshal(rec, v); err != nil {
		return &Error{Kind: MalformedJSON, Candidate: string(rec), Err: err}
	}
	return nil
}

func braceSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func parseObject(candidate string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(candidate))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("candidate is not a JSON object")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, err
	}
	return json.RawMessage(trimmed), nil
}
