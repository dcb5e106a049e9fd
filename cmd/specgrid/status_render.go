package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type checkState int

const (
	stateInfo checkState = iota
	statePass
	stateWarn
	stateFail
)

const statusLabelWidth = 16

func (s checkState) label() string {
	switch s {
	case statePass:
		return "OK"
	case stateWarn:
		return "WARN"
	case stateFail:
		return "FAIL"
	default:
		return "INFO"
	}
}

func (s checkState) colors() text.Colors {
	switch s {
	case statePass:
		return text.Colors{text.FgGreen}
	case stateWarn:
		return text.Colors{text.FgYellow}
	case stateFail:
		return text.Colors{text.FgRed, text.Bold}
	default:
		return text.Colors{text.FgBlue}
	}
}

// statusLine renders "  label:  [STATE] detail"; only the tag is colored.
func statusLine(label string, state checkState, detail string, colorize bool) string {
	tag := "[" + state.label() + "]"
	if colorize {
		tag = state.colors().Sprint(tag)
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)
	if detail != "" {
		line += " " + detail
	}
	return line
}

func sectionHeader(title string, colorize bool) string {
	line := "== " + strings.TrimSpace(title) + " =="
	if colorize {
		return text.Colors{text.FgBlue, text.Bold}.Sprint(line)
	}
	return line
}

// isTerminal reports whether writer is an interactive terminal.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
