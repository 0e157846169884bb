package command

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		kind     Kind
		recordID string
	}{
		{"resolved rec_abc123", KindResolved, "rec_abc123"},
		{"  RESOLVED rec_abc123  ", KindResolved, "rec_abc123"},
		{"resolved", KindUnknown, ""},
		{"resolved rec_1 rec_2", KindUnknown, ""},
		{"status", KindStatus, ""},
		{"Status", KindStatus, ""},
		{"status now", KindUnknown, ""},
		{"pending", KindPending, ""},
		{"", KindUnknown, ""},
		{"   ", KindUnknown, ""},
		{"help", KindUnknown, ""},
		{"resolve rec_abc", KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cmd := Parse(tt.in)
			if cmd.Kind != tt.kind {
				t.Errorf("Parse(%q).Kind = %v, want %v", tt.in, cmd.Kind, tt.kind)
			}
			if cmd.RecordID != tt.recordID {
				t.Errorf("Parse(%q).RecordID = %q, want %q", tt.in, cmd.RecordID, tt.recordID)
			}
			if cmd.Raw != tt.in {
				t.Errorf("Parse(%q).Raw = %q", tt.in, cmd.Raw)
			}
		})
	}
}
