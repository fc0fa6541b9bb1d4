package maptesting

import (
	"fmt"
	"strings"
)

// MapState is the lifecycle position of a map under testing. The zero
// value is StateTesting, which is also the state every accepted
// submission starts in.
type MapState int

const (
	StateTesting MapState = iota
	StateRC
	StateWaiting
	StateReady
	StateDeclined
	StateReleased
)

func (s MapState) String() string {
	switch s {
	case StateTesting:
		return "TESTING"
	case StateRC:
		return "RC"
	case StateWaiting:
		return "WAITING"
	case StateReady:
		return "READY"
	case StateDeclined:
		return "DECLINED"
	case StateReleased:
		return "RELEASED"
	}
	return fmt.Sprintf("MapState(%d)", int(s))
}

// Glyph is the channel-title marker for a state. Display only; state
// comparison never goes through glyphs.
func (s MapState) Glyph() string {
	switch s {
	case StateRC:
		return "☑"
	case StateWaiting:
		return "💤"
	case StateReady:
		return "✅"
	case StateDeclined:
		return "❌"
	case StateReleased:
		return "🆙"
	}
	return ""
}

func (s MapState) Terminal() bool {
	return s == StateDeclined || s == StateReleased
}

// Bucket is the external category a map channel is filed under.
type Bucket int

const (
	BucketActive Bucket = iota
	BucketWaiting
	BucketEvaluated
)

func (b Bucket) String() string {
	switch b {
	case BucketActive:
		return "active"
	case BucketWaiting:
		return "waiting"
	case BucketEvaluated:
		return "evaluated"
	}
	return fmt.Sprintf("Bucket(%d)", int(b))
}

// BucketFor maps a state to its bucket. A channel's actual category
// must match this at all times; the controller relocates on every
// transition that changes the result.
func BucketFor(s MapState) Bucket {
	switch s {
	case StateTesting, StateRC:
		return BucketActive
	case StateWaiting:
		return BucketWaiting
	default:
		return BucketEvaluated
	}
}

// StateFromTitle recovers the state of a channel from its title glyph
// and the bucket it was found in. Titles of TESTING channels carry no
// glyph, so the bucket disambiguates.
func StateFromTitle(title string, b Bucket) (MapState, error) {
	for _, s := range []MapState{StateRC, StateWaiting, StateReady, StateDeclined, StateReleased} {
		g := s.Glyph()
		if g != "" && strings.HasPrefix(title, g) {
			if BucketFor(s) != b {
				return 0, fmt.Errorf("title glyph %s does not belong in %s bucket", g, b)
			}
			return s, nil
		}
	}
	if b != BucketActive {
		return 0, fmt.Errorf("no state glyph in title %q for %s bucket", title, b)
	}
	return StateTesting, nil
}

// Server is the difficulty/category label of a map. Closed set.
type Server string

const (
	ServerNovice    Server = "Novice"
	ServerModerate  Server = "Moderate"
	ServerBrutal    Server = "Brutal"
	ServerInsane    Server = "Insane"
	ServerDummy     Server = "Dummy"
	ServerOldschool Server = "Oldschool"
	ServerSolo      Server = "Solo"
	ServerRace      Server = "Race"
	ServerFun       Server = "Fun"
)

var serverGlyphs = map[Server]string{
	ServerNovice:    "👶",
	ServerModerate:  "🌸",
	ServerBrutal:    "💪",
	ServerInsane:    "💀",
	ServerDummy:     "🤖",
	ServerOldschool: "👴",
	ServerSolo:      "⚡",
	ServerRace:      "🏁",
	ServerFun:       "🎉",
}

func Servers() []Server {
	return []Server{
		ServerNovice, ServerModerate, ServerBrutal, ServerInsane,
		ServerDummy, ServerOldschool, ServerSolo, ServerRace, ServerFun,
	}
}

func ParseServer(s string) (Server, error) {
	for _, srv := range Servers() {
		if strings.EqualFold(string(srv), s) {
			return srv, nil
		}
	}
	return "", fmt.Errorf("unknown server label %q", s)
}

func (s Server) Glyph() string {
	return serverGlyphs[s]
}
