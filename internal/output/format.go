// Package output renders tasks as text for the CLI and shared display
// helpers for the terminal and web shells.
package output

import (
	"fmt"
	"io"
	"strings"

	"supatodo/internal/service"
)

const (
	checkDone = "[x]"
	checkOpen = "[ ]"
	untitled  = "(untitled)"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// FormatTask writes "{N:>4}  [x] {TITLE}\n".
func FormatTask(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  %s %s\n", num, Check(task.Completed), Title(task.Title))
}

// FormatTaskWithID is FormatTask followed by the row id in parentheses.
func FormatTaskWithID(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  %s %s  (%s)\n", num, Check(task.Completed), Title(task.Title), task.ID)
}

func Check(completed bool) string {
	if completed {
		return checkDone
	}
	return checkOpen
}

// Title flattens a stored title onto one line. Rows created elsewhere can
// have blank titles; those render as "(untitled)".
func Title(title string) string {
	title = lineBreaks.Replace(title)
	if strings.TrimSpace(title) == "" {
		return untitled
	}
	return title
}

// Tally counts completed and pending tasks.
func Tally(tasks []service.Task) (done, pending int) {
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	return done, len(tasks) - done
}
