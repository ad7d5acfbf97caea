package drafting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// RawLog keeps every raw model response on disk for later inspection.
type RawLog struct {
	dir string
	now func() time.Time
}

func NewRawLog(dir string) *RawLog {
	return &RawLog{dir: dir, now: time.Now}
}

// SafeName keeps letters, digits and "._-"; every other rune becomes '_'.
func SafeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, s)
}

// Save writes raw to <stamp>__<title>__<provider>.txt and returns the path.
func (l *RawLog) Save(title, providerName, raw string) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create raw log dir: %w", err)
	}

	stamp := l.now().UTC().Format("2006-01-02T15:04:05.000000")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)

	name := stamp + "__" + SafeName(title) + "__" + SafeName(providerName) + ".txt"
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return "", fmt.Errorf("write raw log: %w", err)
	}
	return path, nil
}
