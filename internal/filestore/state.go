// Package filestore keeps olympiad state in plain files: the participant
// table, the organizer list, submitted solutions and the task bundle.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/saidjob/olympiad/internal/domain/session"
)

const (
	noneToken  = "None"
	trueToken  = "True"
	falseToken = "False"
)

// Schema versions of a participant line, by field count.
const (
	SchemaV0 = 6 // id,code,registered,submitted,issued,timer
	SchemaV1 = 7 // + username_checked
	SchemaV2 = 8 // + score
)

// legacyLayouts are accepted on read for records written by older deployments.
// They carry no zone and are interpreted in local time.
var legacyLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ParseError reports a malformed line in the state file.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// StateStore is the line-oriented participant table. It implements
// session.Store.
type StateStore struct {
	path string
	mu   sync.Mutex
}

// NewStateStore returns a store backed by path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// LoadAll parses the state file. A missing file is an empty table.
func (s *StateStore) LoadAll(ctx context.Context) (map[string]session.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]session.Participant{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return Decode(data)
}

// SaveAll rewrites the state file atomically.
func (s *StateStore) SaveAll(ctx context.Context, sessions map[string]session.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomicDurable(s.path, Encode(sessions), 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Decode parses the participant table. Blank lines are skipped.
func Decode(data []byte) (map[string]session.Participant, error) {
	out := make(map[string]session.Participant)
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p, err := decodeLine(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: err.Error()}
		}
		if _, dup := out[p.ID]; dup {
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("duplicate participant %q", p.ID)}
		}
		out[p.ID] = p
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan state file: %w", err)
	}
	return out, nil
}

func decodeLine(line string) (session.Participant, error) {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	switch len(fields) {
	case SchemaV0, SchemaV1, SchemaV2:
	default:
		return session.Participant{}, fmt.Errorf("expected %d, %d or %d fields, got %d", SchemaV0, SchemaV1, SchemaV2, len(fields))
	}

	var p session.Participant
	var err error
	if p.ID = fields[0]; p.ID == "" {
		return p, errors.New("empty participant id")
	}
	if fields[1] != noneToken {
		p.AccessCode = fields[1]
	}
	if p.Registered, err = parseFlag(fields[2]); err != nil {
		return p, fmt.Errorf("registered: %w", err)
	}
	if p.SolutionSubmitted, err = parseFlag(fields[3]); err != nil {
		return p, fmt.Errorf("solution_submitted: %w", err)
	}
	if p.TaskIssuedAt, err = parseTime(fields[4]); err != nil {
		return p, fmt.Errorf("task_issued_at: %w", err)
	}
	if p.TimerActive, err = parseFlag(fields[5]); err != nil {
		return p, fmt.Errorf("timer_active: %w", err)
	}
	if len(fields) >= SchemaV1 {
		if p.UsernameChecked, err = parseFlag(fields[6]); err != nil {
			return p, fmt.Errorf("username_checked: %w", err)
		}
	}
	if len(fields) >= SchemaV2 {
		if p.Score, err = parseScore(fields[7]); err != nil {
			return p, fmt.Errorf("score: %w", err)
		}
	}
	return p, nil
}

// Encode renders the table in the current schema, one line per participant
// in identifier order.
func Encode(sessions map[string]session.Participant) []byte {
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf bytes.Buffer
	for _, id := range ids {
		p := sessions[id]
		code := p.AccessCode
		if code == "" {
			code = noneToken
		}
		issued := noneToken
		if p.TaskIssuedAt != nil {
			issued = p.TaskIssuedAt.UTC().Format(time.RFC3339Nano)
		}
		fmt.Fprintf(&buf, "%s,%s,%s,%s,%s,%s,%s,%d\n",
			id, code, formatFlag(p.Registered), formatFlag(p.SolutionSubmitted),
			issued, formatFlag(p.TimerActive), formatFlag(p.UsernameChecked), p.Score)
	}
	return buf.Bytes()
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0", "", "none":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q", s)
}

func formatFlag(b bool) string {
	if b {
		return trueToken
	}
	return falseToken
}

func parseTime(s string) (*time.Time, error) {
	if s == "" || s == noneToken {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", s)
}

func parseScore(s string) (int, error) {
	if s == "" || s == noneToken {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative score %d", n)
	}
	return n, nil
}
