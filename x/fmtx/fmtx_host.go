//go:build !tinygo

package fmtx

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultOutput is used by Print/Printf. Host builds default to stdout;
// platform bootstrap may redirect (e.g. to a console UART writer in tests).
var DefaultOutput io.Writer = os.Stdout

func Sprintf(format string, a ...any) string                    { return fmt.Sprintf(format, a...) }
func Printf(format string, a ...any) (int, error)               { return fmt.Fprintf(DefaultOutput, format, a...) }
func Fprintf(w io.Writer, format string, a ...any) (int, error) { return fmt.Fprintf(w, format, a...) }
func Errorf(format string, a ...any) error                      { return fmt.Errorf(format, a...) }
// Sprint joins operands with single spaces on every build (the MCU builder
// does the same), unlike fmt.Sprint which omits spaces next to strings.
func Sprint(a ...any) string                    { return strings.TrimSuffix(fmt.Sprintln(a...), "\n") }
func Fprint(w io.Writer, a ...any) (int, error) { return w.Write([]byte(Sprint(a...))) }
func Print(a ...any) (int, error)               { return Fprint(DefaultOutput, a...) }
