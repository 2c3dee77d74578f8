package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUserInitiatedExit is returned when the user asks to quit.
var ErrUserInitiatedExit = errors.New("user exit")

// FormatError renders err for the model: the message on the first line,
// followed by the innermost cause and its type if err wraps other errors.
// Joined errors are listed one per line.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(err.Error())
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			sb.WriteString("\n- ")
			sb.WriteString(FormatError(e))
		}
		return sb.String()
	}
	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	if root != err {
		sb.WriteString(fmt.Sprintf("\nroot cause (%T): %v", root, root))
	}
	return sb.String()
}
