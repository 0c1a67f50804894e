// Package access decides whether a session may open a folder.
package access

import (
	"github.com/foldergate/foldergate/internal/session"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Allow means the folder may be shown.
	Allow Decision = iota
	// Deny means navigation is refused outright.
	Deny
	// Prompt means the folder password must be asked for.
	Prompt
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Prompt:
		return "prompt"
	}
	return "unknown"
}

// Credentials is the part of the credential store authorization reads.
type Credentials interface {
	FolderPassword(id string) (string, bool)
	HasDirectAccessCode(id, code string) bool
}

// Authorizer applies folder access rules against a credential store.
type Authorizer struct {
	creds Credentials
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(creds Credentials) *Authorizer {
	return &Authorizer{creds: creds}
}

// Authorize decides whether sess may open folderID. The caller holds the
// session lock. Rules, first match wins:
//
//  1. direct-access sessions are denied anything outside their granted
//     subtree (everything, if no root was granted);
//  2. authenticated admins are allowed;
//  3. folders with no password, or already unlocked, are allowed;
//  4. anything else needs the password.
func (a *Authorizer) Authorize(sess *session.Session, folderID string) Decision {
	if sess.Mode == session.ModeDirectAccess &&
		!sess.Forest.IsDescendantOrSelf(sess.DirectAccessRoot, folderID) {
		return Deny
	}
	if sess.IsAdmin() {
		return Allow
	}
	if _, ok := a.creds.FolderPassword(folderID); !ok || sess.IsUnlocked(folderID) {
		return Allow
	}
	return Prompt
}

// CheckFolderPassword reports whether candidate opens folderID. A folder
// with no password accepts anything.
func (a *Authorizer) CheckFolderPassword(folderID, candidate string) bool {
	pw, ok := a.creds.FolderPassword(folderID)
	return !ok || pw == candidate
}

// AdmitDirect redeems a direct-access code. On success the session enters
// direct-access mode rooted at folderID, opens it, and marks it unlocked.
// The caller holds the session lock.
func (a *Authorizer) AdmitDirect(sess *session.Session, folderID, code string) bool {
	if !a.creds.HasDirectAccessCode(folderID, code) {
		return false
	}
	sess.Mode = session.ModeDirectAccess
	sess.AdminAuthenticated = false
	sess.DirectAccessRoot = folderID
	sess.CurrentFolder = folderID
	sess.MarkUnlocked(folderID)
	return true
}
