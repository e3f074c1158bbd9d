// Package termfilter scrubs terminal capability negotiation noise from
// PTY byte streams and detects interactive prompt markers in CLI output.
package termfilter

import (
	"bytes"
	"regexp"
	"strings"
)

// Device Attributes queries a terminal emulator sends to discover what the
// "terminal" on the other end supports. The wrapped CLI does not answer
// these; left alone they get echoed into the conversation as garbage.
// Covers primary (CSI c / CSI 0 c), secondary (CSI > c) and tertiary
// (CSI = c) forms.
var daQueryPattern = regexp.MustCompile(`\x1b\[[>=]?0?c`)

// Device Attributes responses arriving from the process side, e.g.
// "\x1b[?1;2c" or "\x1b[>0;276;0c".
var daResponsePattern = regexp.MustCompile(`\x1b\[[?>][0-9;]*c`)

// Mangled responses whose escape byte was consumed somewhere along the way,
// leaving a bare "[?1;2c" in the text.
var daBareResponsePattern = regexp.MustCompile(`\[\?[0-9;]*c`)

// FilterOutgoingQueries removes Device Attributes query sequences from bytes
// headed upstream to the wrapped process. Pure and idempotent.
func FilterOutgoingQueries(data []byte) []byte {
	if !bytes.ContainsRune(data, 0x1b) {
		return data
	}
	return daQueryPattern.ReplaceAll(data, nil)
}

// FilterIncomingResponses removes Device Attributes response sequences (and
// their mangled form lacking the escape prefix) from process output. Pure
// and idempotent. Most chunks are plain text, so anything without an escape
// byte or a '?' is returned untouched.
func FilterIncomingResponses(data []byte) []byte {
	if !bytes.ContainsAny(data, "\x1b?") {
		return data
	}
	data = daResponsePattern.ReplaceAll(data, nil)
	data = daBareResponsePattern.ReplaceAll(data, nil)
	return data
}

// ContainsPromptMarker reports whether text contains any of the given marker
// phrases. The wrapped CLI emits these only while presenting a
// multiple-choice prompt (selection and cancel hints), so a hit is a signal
// that the session is asking the user a question. The bytes themselves are
// never altered.
func ContainsPromptMarker(text string, markers []string) bool {
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
