package maptesting

import (
	"fmt"
	"strings"
	"time"
)

// Changelog entry categories.
const (
	CategorySubmitted = "SUBMITTED"
	CategoryRC        = "RC"
	CategoryReady     = "READY"
	CategoryDeclined  = "DECLINED"
	CategoryWaiting   = "WAITING"
	CategoryReset     = "RESET"
	CategoryAutoReset = "AUTO_RESET"
	CategoryReleased  = "RELEASED"
	CategoryUpdate    = "UPDATE"
	CategoryRename    = "RENAME"
	CategoryMappers   = "MAPPERS"
	CategoryServer    = "SERVER"
	CategoryOwner     = "OWNER"
)

const DefaultPageSize = 10

type Entry struct {
	Time     time.Time
	Actor    string
	Category string
	Text     string
}

// Changelog is the append-only audit trail of a map channel. Entries
// are never mutated or reordered; display is paginated. Single writer
// per channel: the controller serializes all appends.
type Changelog struct {
	entries  []Entry
	pageSize int
}

func NewChangelog() *Changelog {
	return &Changelog{pageSize: DefaultPageSize}
}

func (l *Changelog) Add(actor, category, text string) Entry {
	e := Entry{Time: time.Now().UTC(), Actor: actor, Category: category, Text: text}
	l.entries = append(l.entries, e)
	return e
}

// Append restores a previously persisted entry, keeping its timestamp.
func (l *Changelog) Append(e Entry) {
	l.entries = append(l.entries, e)
}

func (l *Changelog) Len() int { return len(l.entries) }

func (l *Changelog) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

func (l *Changelog) PageCount() int {
	if len(l.entries) == 0 {
		return 0
	}
	return (len(l.entries) + l.pageSize - 1) / l.pageSize
}

// Page returns the entries of page n (zero-based), newest-last within
// the page.
func (l *Changelog) Page(n int) []Entry {
	start := n * l.pageSize
	if n < 0 || start >= len(l.entries) {
		return nil
	}
	end := start + l.pageSize
	if end > len(l.entries) {
		end = len(l.entries)
	}
	return append([]Entry(nil), l.entries[start:end]...)
}

// RenderLastPage renders the most recent page for display. Safe to
// call repeatedly; the output depends only on the current entries.
func (l *Changelog) RenderLastPage() string {
	pages := l.PageCount()
	if pages == 0 {
		return ""
	}
	return RenderPage(l.Page(pages - 1))
}

func RenderPage(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] %s (%s): %s",
			e.Time.Format("2006-01-02 15:04"), e.Actor, e.Category, e.Text)
	}
	return b.String()
}
