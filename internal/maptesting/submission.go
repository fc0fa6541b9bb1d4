package maptesting

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

type SubmissionState int

const (
	SubmissionPending SubmissionState = iota
	SubmissionValidated
	SubmissionUploaded
	SubmissionProcessed
	SubmissionErrored
)

// Submission is one uploaded map artifact. Short-lived: it exists for
// the validate-upload-react pipeline of a single upload event. Bytes
// are fetched lazily since most invalid submissions never need them.
type Submission struct {
	Filename string
	AuthorID string

	state SubmissionState
	fetch func(ctx context.Context) ([]byte, error)
	raw   []byte
}

func NewSubmission(filename, authorID string, fetch func(ctx context.Context) ([]byte, error)) *Submission {
	return &Submission{Filename: filename, AuthorID: authorID, fetch: fetch}
}

func (s *Submission) State() SubmissionState { return s.state }

func (s *Submission) SetState(st SubmissionState) { s.state = st }

// Bytes downloads the artifact on first use and caches it.
func (s *Submission) Bytes(ctx context.Context) ([]byte, error) {
	if s.raw != nil {
		return s.raw, nil
	}
	if s.fetch == nil {
		return nil, fmt.Errorf("submission %s has no artifact source", s.Filename)
	}
	data, err := s.fetch(ctx)
	if err != nil {
		s.state = SubmissionErrored
		return nil, fmt.Errorf("fetch %s: %w", s.Filename, err)
	}
	s.raw = data
	return data, nil
}

// detailsRe matches the required submission header:
//
//	"<name>" by <mapper>, <mapper> & <mapper> [<Server>]
var detailsRe = regexp.MustCompile(`^"(.+)" by (.+) \[([A-Za-z]+)\]\s*$`)

// ParseDetails parses a submission header line into its fields.
func ParseDetails(line string) (name string, mappers []string, server Server, err error) {
	m := detailsRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", nil, "", &ValidationError{Reason: `header must look like "<name>" by <mappers> [<Server>]`}
	}
	name = m[1]
	mappers = SplitMappers(m[2])
	if len(mappers) == 0 {
		return "", nil, "", &ValidationError{Reason: "at least one mapper is required"}
	}
	server, perr := ParseServer(m[3])
	if perr != nil {
		return "", nil, "", &ValidationError{Reason: perr.Error()}
	}
	return name, mappers, server, nil
}

// SplitMappers is the inverse of JoinMappers: "A, B & C" -> [A B C].
func SplitMappers(s string) []string {
	head, last := s, ""
	if i := strings.LastIndex(s, " & "); i >= 0 {
		head = s[:i]
		last = strings.TrimSpace(s[i+3:])
	}
	var out []string
	for _, part := range strings.Split(head, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if last != "" {
		out = append(out, last)
	}
	return out
}
