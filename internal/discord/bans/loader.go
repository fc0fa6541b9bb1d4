package bans

import (
	"bufio"
	"os"
	"strings"
)

// List holds user ids excluded from submitting maps. One id per line,
// // starts a comment.
type List struct {
	ids map[string]struct{}
}

func Load(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ids := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		t := strings.TrimSpace(sc.Text())
		if t != "" && !strings.HasPrefix(t, "//") {
			ids[t] = struct{}{}
		}
	}
	return &List{ids: ids}, sc.Err()
}

func (l *List) Contains(userID string) bool {
	if l == nil {
		return false
	}
	_, ok := l.ids[userID]
	return ok
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.ids)
}
