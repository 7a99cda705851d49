// Package session turns the simulator's session metadata into a session
// type. Metadata arrives either as YAML text or already decoded; Normalize
// maps both onto Info so nothing downstream cares which one it got.
package session

import (
	"fmt"
	"strings"
	"sync"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"gopkg.in/yaml.v3"
)

const (
	TypeRace     = "race"
	TypePractice = "practice"
	TypeQualify  = "qualify"

	// DefaultType is returned whenever the metadata cannot answer.
	DefaultType = TypeRace
)

// Entry is one session of the weekend.
type Entry struct {
	Num  int    `yaml:"SessionNum"`
	Type string `yaml:"SessionType"`
	Name string `yaml:"SessionName"`
}

// Info is the canonical form of the session metadata.
type Info struct {
	Sessions []Entry
}

// Lookup returns the entry for session number num.
func (i Info) Lookup(num int) (Entry, bool) {
	for _, e := range i.Sessions {
		if e.Num == num {
			return e, true
		}
	}
	return Entry{}, false
}

// document accepts both the full SDK layout and a bare Sessions list.
type document struct {
	SessionInfo struct {
		Sessions []Entry `yaml:"Sessions"`
	} `yaml:"SessionInfo"`
	Sessions []Entry `yaml:"Sessions"`
}

// Normalize converts YAML text, raw bytes or decoded maps into Info.
func Normalize(meta any) (Info, error) {
	errFactory := errors.New()

	var raw []byte
	switch m := meta.(type) {
	case nil:
		return Info{}, errFactory.New(ErrEmptyMetadata)
	case Info:
		return m, nil
	case *Info:
		if m == nil {
			return Info{}, errFactory.New(ErrEmptyMetadata)
		}
		return *m, nil
	case string:
		raw = []byte(m)
	case []byte:
		raw = m
	case map[string]any, map[any]any, []any:
		b, err := yaml.Marshal(m)
		if err != nil {
			return Info{}, errFactory.Wrap(ErrParseMetadata, err)
		}
		raw = b
	default:
		return Info{}, errFactory.WithData(ErrUnsupportedType, fmt.Sprintf("%T", meta))
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return Info{}, errFactory.New(ErrEmptyMetadata)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Info{}, errFactory.Wrap(ErrParseMetadata, err)
	}

	sessions := doc.SessionInfo.Sessions
	if len(sessions) == 0 {
		sessions = doc.Sessions
	}

	return Info{Sessions: sessions}, nil
}

// Classify returns the lower-cased type of session num, or DefaultType when
// the metadata is empty, malformed or has no matching entry. It never fails.
func Classify(num int, meta any) string {
	info, err := Normalize(meta)
	if err != nil {
		logger.Debug().Err(err).Int("session_num", num).Msg("Session metadata unusable, assuming race")
		return DefaultType
	}
	return classifyInfo(num, info)
}

func classifyInfo(num int, info Info) string {
	entry, ok := info.Lookup(num)
	if !ok {
		logger.Debug().Int("session_num", num).Msg("No session metadata for session number, assuming race")
		return DefaultType
	}

	t := strings.ToLower(strings.TrimSpace(entry.Type))
	if t == "" {
		return DefaultType
	}
	return t
}

// IsRace reports whether t selects the race branch of the front-car logic.
// Everything else (practice, qualifying, warmup, testing) ranks by best lap.
func IsRace(t string) bool {
	return strings.Contains(strings.ToLower(t), TypeRace)
}

// Classifier caches the parsed metadata between ticks, keyed by the raw
// document.
type Classifier struct {
	mu      sync.Mutex
	lastRaw string
	info    Info
	err     error
	primed  bool
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(num int, meta any) string {
	text, ok := meta.(string)
	if !ok {
		return Classify(num, meta)
	}

	c.mu.Lock()
	if !c.primed || text != c.lastRaw {
		c.info, c.err = Normalize(text)
		c.lastRaw = text
		c.primed = true
	}
	info, err := c.info, c.err
	c.mu.Unlock()

	if err != nil {
		logger.Debug().Err(err).Int("session_num", num).Msg("Session metadata unusable, assuming race")
		return DefaultType
	}
	return classifyInfo(num, info)
}
