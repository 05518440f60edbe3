package logger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// messager matches zerr.Error, which reports its own message without the chain.
type messager interface {
	Message() string
}

type metadataer interface {
	Metadata() map[string]any
}

// Format renders an error as a headline followed by its causes.
//
//	Error: transport failure
//
//	  Caused by:
//	    → request failed (locator=https://...)
//	    → connection refused
func Format(err error) string {
	messages := causes(err)
	if len(messages) == 0 {
		return ""
	}

	var lines []string
	for i, msg := range messages {
		parts := strings.Split(msg, "\n")
		if i == 0 {
			lines = append(lines, "Error: "+parts[0])
			for _, p := range parts[1:] {
				lines = append(lines, "       "+p)
			}
			continue
		}
		if i == 1 {
			lines = append(lines, "", "  Caused by:")
		}
		lines = append(lines, "    → "+parts[0])
		for _, p := range parts[1:] {
			lines = append(lines, "      "+p)
		}
	}
	return strings.Join(lines, "\n")
}

// causes flattens the error tree depth first. Joined errors contribute every branch.
// Metadata of an error without a message is attached to the next line.
func causes(err error) []string {
	var (
		lines   []string
		pending = map[string]any{}
	)

	emit := func(msg string) {
		lines = append(lines, withMetadata(msg, pending))
		clear(pending)
	}

	var walk func(error)
	walk = func(e error) {
		for e != nil {
			if multi, ok := e.(interface{ Unwrap() []error }); ok {
				for _, child := range multi.Unwrap() {
					walk(child)
				}
				return
			}

			m, ok := e.(messager)
			if !ok {
				emit(e.Error())
				return
			}
			if md, ok := e.(metadataer); ok {
				maps.Copy(pending, md.Metadata())
			}
			if msg := m.Message(); msg != "" {
				emit(msg)
			}
			e = errors.Unwrap(e)
		}
	}
	walk(err)

	if len(pending) > 0 && len(lines) > 0 {
		lines[len(lines)-1] = withMetadata(lines[len(lines)-1], pending)
	}
	return lines
}

func withMetadata(msg string, meta map[string]any) string {
	if len(meta) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return msg + " (" + strings.Join(pairs, ", ") + ")"
}
