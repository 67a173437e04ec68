package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Panel is a terminal app with its own wait state.
type Panel string

// Panels of the terminal.
const (
	PanelMap     Panel = "map"
	PanelMonitor Panel = "monitor"
	PanelNews    Panel = "news"
)

// AllPanels lists every panel in a stable order.
var AllPanels = []Panel{PanelMap, PanelMonitor, PanelNews}

// ParsePanel converts user input into a Panel.
func ParsePanel(s string) (Panel, error) {
	for _, p := range AllPanels {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown panel: %q", s)
}

// PrimaryDomain is the domain whose candidates define the panel's records.
func (p Panel) PrimaryDomain() Domain {
	switch p {
	case PanelMonitor:
		return DomainProgress
	case PanelNews:
		return DomainNews
	default:
		return DomainLocation
	}
}

// SupportDomains are scanned alongside the primary domain to fill in
// avatar and statement fields.
func (p Panel) SupportDomains() []Domain {
	switch p {
	case PanelMap:
		return []Domain{DomainAvatar}
	case PanelMonitor:
		return []Domain{DomainAvatar, DomainStatement}
	default:
		return nil
	}
}

// Domains returns the primary domain followed by the support domains.
func (p Panel) Domains() []Domain {
	return append([]Domain{p.PrimaryDomain()}, p.SupportDomains()...)
}

// WaitState tracks whether a panel is waiting on a chat response.
type WaitState int

// Wait states. Resolved and TimedOut are transient and fall back to Idle.
const (
	WaitIdle WaitState = iota
	WaitWaiting
	WaitResolved
	WaitTimedOut
)

func (s WaitState) String() string {
	switch s {
	case WaitIdle:
		return "idle"
	case WaitWaiting:
		return "waiting"
	case WaitResolved:
		return "resolved"
	case WaitTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("wait_state(%d)", int(s))
	}
}

// MarshalText renders the state by name.
func (s WaitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NoticeKind selects how a transient notice is styled.
type NoticeKind string

// Notice kinds. Timeout notices are styled apart from success notices.
const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeTimeout NoticeKind = "timeout"
)

// Notice is a transient, auto-dismissing message for the user.
type Notice struct {
	ID    uuid.UUID  `json:"id"`
	Panel Panel      `json:"panel"`
	Kind  NoticeKind `json:"kind"`
	Text  string     `json:"text"`
	At    time.Time  `json:"at"`
}

// NewNotice builds a notice stamped with a fresh ID and the current time.
func NewNotice(panel Panel, kind NoticeKind, text string) Notice {
	return Notice{
		ID:    uuid.New(),
		Panel: panel,
		Kind:  kind,
		Text:  text,
		At:    time.Now(),
	}
}
