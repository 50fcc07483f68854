package recorder

import "strings"

// Class is the outcome of inbound line classification.
type Class uint8

const (
	// ClassTelemetry: a genuine sensor frame, ready to timestamp and log.
	ClassTelemetry Class = iota
	// ClassIgnored: noise, boot-banner text, or a potential console command.
	ClassIgnored
)

// bootSignatures are fixed substrings printed by the remote node's boot ROM
// and bootloader. A frame containing any of them is never data, commas or
// not.
var bootSignatures = [...]string{
	"ets",
	"rst:",
	"boot:",
	"configsip:",
	"load:",
	"entry",
	"mode:",
}

const minFrameLen = 10

// Classify decides whether line is a telemetry frame. Pure; no side effects.
//
// Telemetry iff all hold: length >= 10, first character is a digit or '-',
// at least one comma, exactly fieldCount fields (fieldCount-1 commas), and
// none of the boot-banner signatures appear. Exact substring containment
// only; no fuzzy matching.
func Classify(line string, fieldCount int) Class {
	if len(line) < minFrameLen {
		return ClassIgnored
	}
	c := line[0]
	if c != '-' && (c < '0' || c > '9') {
		return ClassIgnored
	}
	commas := strings.Count(line, ",")
	if commas == 0 || commas != fieldCount-1 {
		return ClassIgnored
	}
	for _, sig := range bootSignatures {
		if strings.Contains(line, sig) {
			return ClassIgnored
		}
	}
	return ClassTelemetry
}
