// Package session tracks per-user conversation and unlock state.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/foldergate/foldergate/internal/tree"
)

// Mode is the role a session is operating in.
type Mode int

const (
	ModeRegular Mode = iota
	ModeAdmin
	ModeDirectAccess
)

func (m Mode) String() string {
	switch m {
	case ModeAdmin:
		return "admin"
	case ModeDirectAccess:
		return "direct_access"
	default:
		return "regular"
	}
}

// PromptKind names the question the next text message answers.
type PromptKind int

const (
	PromptNone PromptKind = iota
	PromptAdminPassword
	PromptChangeAdminPassword
	PromptDirectFolderName
	PromptDirectCode
	PromptFolderPassword
	PromptSetFolderPassword
	PromptAddDirectCode
)

var promptNames = map[PromptKind]string{
	PromptNone:                "none",
	PromptAdminPassword:       "admin_password",
	PromptChangeAdminPassword: "change_admin_password",
	PromptDirectFolderName:    "direct_folder_name",
	PromptDirectCode:          "direct_code",
	PromptFolderPassword:      "folder_password",
	PromptSetFolderPassword:   "set_folder_password",
	PromptAddDirectCode:       "add_direct_code",
}

func (k PromptKind) String() string {
	if s, ok := promptNames[k]; ok {
		return s
	}
	return "unknown"
}

// Prompt is a pending question, with the folder it concerns when the kind
// needs one (DirectCode, FolderPassword, SetFolderPassword, AddDirectCode).
type Prompt struct {
	Kind     PromptKind
	FolderID string
}

// Pending reports whether a prompt is armed.
func (p Prompt) Pending() bool {
	return p.Kind != PromptNone
}

// Session is one user's state. The embedded mutex guards every exported
// field; hold it across the handling of a whole inbound event. UserID and
// LastActivity are safe without it.
type Session struct {
	sync.Mutex

	userID       string
	lastActivity atomic.Int64

	Mode               Mode
	AdminAuthenticated bool
	// DirectAccessRoot is the folder a direct-access grant is limited to.
	DirectAccessRoot string
	// CurrentFolder is the open folder id, "" at top level.
	CurrentFolder    string
	Forest           *tree.Forest
	Awaiting         Prompt
	WaitingForUpload bool

	unlocked map[string]struct{}
}

func newSession(userID string, now time.Time) *Session {
	s := &Session{userID: userID, unlocked: make(map[string]struct{})}
	s.touch(now)
	return s
}

// UserID returns the owning user id.
func (s *Session) UserID() string {
	return s.userID
}

// LastActivity returns the time of the last lookup or creation.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastActivity.Store(now.UnixNano())
}

func (s *Session) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity()) > timeout
}

// IsUnlocked reports whether the session has unlocked folder id.
func (s *Session) IsUnlocked(id string) bool {
	_, ok := s.unlocked[id]
	return ok
}

// MarkUnlocked records id as unlocked for the rest of the session.
func (s *Session) MarkUnlocked(id string) {
	s.unlocked[id] = struct{}{}
}

// Arm sets the pending prompt.
func (s *Session) Arm(kind PromptKind, folderID string) {
	s.Awaiting = Prompt{Kind: kind, FolderID: folderID}
}

// ClearPrompt drops any pending prompt.
func (s *Session) ClearPrompt() {
	s.Awaiting = Prompt{}
}

// Restart returns the session to regular mode with nothing pending. Unlocked
// folders and the cached forest are kept.
func (s *Session) Restart() {
	s.Mode = ModeRegular
	s.AdminAuthenticated = false
	s.DirectAccessRoot = ""
	s.CurrentFolder = ""
	s.WaitingForUpload = false
	s.ClearPrompt()
}

// IsAdmin reports whether the session holds authenticated admin rights.
func (s *Session) IsAdmin() bool {
	return s.Mode == ModeAdmin && s.AdminAuthenticated
}
