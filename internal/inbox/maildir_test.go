package inbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeMsg(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMailDirSource_FetchNew(t *testing.T) {
	dir := t.TempDir()
	writeMsg(t, dir, "0001.txt", "Subject: Order PO-1\nbody one")
	writeMsg(t, dir, "0002.txt", "body without subject line")
	writeMsg(t, dir, "0003.txt", "Subject: Order SO-9\nbody three")
	writeMsg(t, dir, ".hidden", "ignored")

	src := NewMailDirSource(dir)
	msgs, err := src.FetchNew(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].UID != "0001" || msgs[2].UID != "0003" {
		t.Errorf("unexpected ordering: %s .. %s", msgs[0].UID, msgs[2].UID)
	}
	if msgs[0].Subject != "Order PO-1" || msgs[0].Body != "body one" {
		t.Errorf("subject split failed: %+v", msgs[0])
	}
	if msgs[1].Subject != "" || msgs[1].Body != "body without subject line" {
		t.Errorf("subjectless message mishandled: %+v", msgs[1])
	}
}

func TestMailDirSource_Watermark(t *testing.T) {
	dir := t.TempDir()
	writeMsg(t, dir, "0001.txt", "a")
	writeMsg(t, dir, "0002.txt", "b")
	writeMsg(t, dir, "0003.txt", "c")

	src := NewMailDirSource(dir)
	msgs, err := src.FetchNew(context.Background(), "0002")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 1 || msgs[0].UID != "0003" {
		t.Errorf("watermark filter failed: %+v", msgs)
	}
}
