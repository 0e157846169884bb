package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MailDirSource reads messages from files in a directory, one message per
// file, used in staging mode. The filename (without extension) is the UID,
// so lexicographic file ordering is the delivery order. A first line of the
// form "Subject: ..." is split off as the subject; the rest is the body.
type MailDirSource struct {
	dir string
}

// NewMailDirSource creates a directory-backed source.
func NewMailDirSource(dir string) *MailDirSource {
	return &MailDirSource{dir: dir}
}

func (s *MailDirSource) FetchNew(ctx context.Context, afterUID string) ([]RawMessage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("maildir: read %s: %w", s.dir, err)
	}

	var msgs []RawMessage
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		uid := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if uid <= afterUID {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("maildir: read %s: %w", entry.Name(), err)
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("maildir: stat %s: %w", entry.Name(), err)
		}

		subject, body := splitSubject(string(raw))
		msgs = append(msgs, RawMessage{
			UID:      uid,
			Subject:  subject,
			Body:     body,
			Received: info.ModTime(),
		})
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].UID < msgs[j].UID })
	return msgs, nil
}

func splitSubject(raw string) (subject, body string) {
	first, rest, found := strings.Cut(raw, "\n")
	if found && strings.HasPrefix(first, "Subject: ") {
		return strings.TrimPrefix(first, "Subject: "), strings.TrimLeft(rest, "\n")
	}
	return "", raw
}
