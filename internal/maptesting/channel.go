package maptesting

import (
	"fmt"
	"strings"
	"unicode"
)

const previewBase = "https://ddnet.org/testmaps/?map="

// MapChannel is the workspace for one map under review. One channel,
// one map, one changelog. Instances live in the controller's registry
// and must be looked up by id, not cached across await points.
type MapChannel struct {
	ID         string
	Name       string
	Mappers    []string
	Server     Server
	State      MapState
	Votes      []string
	MapperID   string
	PreviewURL string
	Changelog  *Changelog

	// Latest accepted upload, kept for the pre-promotion structural
	// check. Nil after reconstruction until the mapper uploads again.
	LastSubmission *Submission

	// Upload from a non-mapper held until a verification reaction.
	PendingSubmission *Submission
	PendingAuthor     string
}

func NewMapChannel(name string, mappers []string, server Server, mapperID string) *MapChannel {
	ch := &MapChannel{
		Name:      name,
		Mappers:   mappers,
		Server:    server,
		State:     StateTesting,
		MapperID:  mapperID,
		Changelog: NewChangelog(),
	}
	ch.PreviewURL = previewBase + ch.Filename()
	return ch
}

// SanitizeName turns a map title into its on-disk name: spaces become
// underscores, punctuation is dropped.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *MapChannel) Filename() string {
	return SanitizeName(c.Name)
}

// DisplayTitle is the channel title: state glyph, server glyph, filename.
func (c *MapChannel) DisplayTitle() string {
	return c.State.Glyph() + c.Server.Glyph() + c.Filename()
}

// Details renders the submission header line, e.g.
// "Kobra 7" by Pipou [Brutal].
func (c *MapChannel) Details() string {
	return fmt.Sprintf("%q by %s [%s]", c.Name, JoinMappers(c.Mappers), c.Server)
}

func JoinMappers(mappers []string) string {
	switch len(mappers) {
	case 0:
		return ""
	case 1:
		return mappers[0]
	default:
		return strings.Join(mappers[:len(mappers)-1], ", ") + " & " + mappers[len(mappers)-1]
	}
}

func (c *MapChannel) HasVote(actor string) bool {
	for _, v := range c.Votes {
		if v == actor {
			return true
		}
	}
	return false
}

func (c *MapChannel) AddVote(actor string) {
	if actor == "" || c.HasVote(actor) {
		return
	}
	c.Votes = append(c.Votes, actor)
}

// Topic serializes the channel metadata persisted on the platform.
// The first three lines are positional: details, preview link, mapper
// identity. Votes follow space-joined on the fourth line when present.
// ParseTopic must round-trip this exactly.
func (c *MapChannel) Topic() string {
	lines := []string{c.Details(), c.PreviewURL, c.MapperID}
	if len(c.Votes) > 0 {
		lines = append(lines, strings.Join(c.Votes, " "))
	}
	return strings.Join(lines, "\n")
}

// ParseTopic reconstructs a MapChannel from a persisted topic string.
// Used after restarts when the in-memory registry is empty. State is
// not part of the topic; callers recover it from title and bucket via
// StateFromTitle.
func ParseTopic(id, topic string) (*MapChannel, error) {
	lines := strings.Split(strings.TrimRight(topic, "\n"), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: want at least 3 lines, got %d", ErrMalformedTopic, len(lines))
	}
	name, mappers, server, err := ParseDetails(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTopic, err)
	}
	ch := &MapChannel{
		ID:         id,
		Name:       name,
		Mappers:    mappers,
		Server:     server,
		PreviewURL: strings.TrimSpace(lines[1]),
		MapperID:   strings.TrimSpace(lines[2]),
		Changelog:  NewChangelog(),
	}
	if ch.PreviewURL == "" || ch.MapperID == "" {
		return nil, fmt.Errorf("%w: empty preview or mapper line", ErrMalformedTopic)
	}
	if len(lines) > 3 {
		ch.Votes = strings.Fields(lines[3])
	}
	return ch, nil
}
