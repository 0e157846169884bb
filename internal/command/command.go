// Package command parses the fixed grammar of operator commands received
// over the review channel. The parser is deliberately tiny and closed: three
// verbs, everything else is unrecognized.
package command

import "strings"

// Kind identifies a parsed command variant.
type Kind int

const (
	KindUnknown  Kind = iota
	KindResolved      // resolved <externalRecordId>
	KindStatus        // status
	KindPending       // pending
)

// Command is one parsed operator command.
type Command struct {
	Kind     Kind
	RecordID string // set for KindResolved
	Raw      string
}

// Usage is the reply sent for unrecognized input.
const Usage = "commands: resolved <record-id> | status | pending"

// Parse interprets one line of operator input. Verbs are case-insensitive;
// surrounding whitespace is ignored.
func Parse(text string) Command {
	cmd := Command{Kind: KindUnknown, Raw: text}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return cmd
	}

	switch strings.ToLower(fields[0]) {
	case "resolved":
		if len(fields) == 2 {
			cmd.Kind = KindResolved
			cmd.RecordID = fields[1]
		}
	case "status":
		if len(fields) == 1 {
			cmd.Kind = KindStatus
		}
	case "pending":
		if len(fields) == 1 {
			cmd.Kind = KindPending
		}
	}
	return cmd
}
