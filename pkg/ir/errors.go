package ir

import (
	"fmt"
	"strings"
)

// Location identifies the schema fragment an error refers to.
type Location struct {
	Controller string
	Endpoint   string
	Path       []string
}

func (l Location) String() string {
	var parts []string
	if l.Controller != "" {
		name := l.Controller
		if l.Endpoint != "" {
			name += "." + l.Endpoint
		}
		parts = append(parts, name)
	}
	if len(l.Path) > 0 {
		parts = append(parts, strings.Join(l.Path, "."))
	}
	return strings.Join(parts, " ")
}

func located(l Location, msg string) string {
	if loc := l.String(); loc != "" {
		return loc + ": " + msg
	}
	return msg
}

// SchemaLoadError reports unreadable or malformed input.
type SchemaLoadError struct {
	Location
	Source string
	Msg    string
	Err    error
}

func (e *SchemaLoadError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Source != "" {
		msg = e.Source + ": " + located(e.Location, msg)
	} else {
		msg = located(e.Location, msg)
	}
	return "schema load: " + msg
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// AdapterError reports an unrecognized adapter or an inconsistent optionality signal.
type AdapterError struct {
	Location
	Adapter string
	Msg     string
}

func (e *AdapterError) Error() string {
	prefix := "adapter"
	if e.Adapter != "" {
		prefix += " " + e.Adapter
	}
	return prefix + ": " + located(e.Location, e.Msg)
}

// PathParamMismatchError reports a path template and params shape that disagree.
type PathParamMismatchError struct {
	Location
	PathTemplate string
	Msg          string
}

func (e *PathParamMismatchError) Error() string {
	return fmt.Sprintf("path params: %s (path %q)", located(e.Location, e.Msg), e.PathTemplate)
}

// NamingCollisionError reports two structurally different shapes resolving to one name.
type NamingCollisionError struct {
	Location
	Name     string
	Existing Location
}

func (e *NamingCollisionError) Error() string {
	return fmt.Sprintf("naming collision: %s resolves to %q already taken by %s",
		located(e.Location, "shape"), e.Name, e.Existing.String())
}

// EmissionError reports a construct a target language cannot express.
type EmissionError struct {
	Location
	Target string
	Msg    string
	Err    error
}

func (e *EmissionError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("emit %s: %s", e.Target, located(e.Location, msg))
}

func (e *EmissionError) Unwrap() error { return e.Err }
