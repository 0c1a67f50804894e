// Package engine runs the per-user conversation: it routes inbound text,
// files and action tokens through the session state machine and returns a
// render-agnostic Response for the messaging front-end.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/foldergate/foldergate/internal/access"
	"github.com/foldergate/foldergate/internal/events"
	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
	"github.com/foldergate/foldergate/internal/provider"
	"github.com/foldergate/foldergate/internal/session"
)

// CredentialStore is the credential store as the engine uses it.
type CredentialStore interface {
	access.Credentials
	CheckAdminPassword(candidate string) bool
	ChangeAdminPassword(newPassword string) error
	SetFolderPassword(id, password string) error
	DirectAccessCodes(id string) []string
	AddDirectAccessCode(id, code string) error
}

// Deps are the collaborators an Engine needs. Limiter and Events may be nil.
type Deps struct {
	Sessions    *session.Store
	Credentials CredentialStore
	Provider    provider.Provider
	Limiter     *access.Limiter
	Events      *events.Broadcaster
}

// Engine handles inbound events. It is safe for concurrent use; events for
// the same user are serialized on that user's session.
type Engine struct {
	sessions *session.Store
	creds    CredentialStore
	authz    *access.Authorizer
	provider provider.Provider
	limiter  *access.Limiter
	events   *events.Broadcaster
}

// New creates an Engine.
func New(d Deps) *Engine {
	return &Engine{
		sessions: d.Sessions,
		creds:    d.Credentials,
		authz:    access.NewAuthorizer(d.Credentials),
		provider: d.Provider,
		limiter:  d.Limiter,
		events:   d.Events,
	}
}

// acquire returns the user's session, creating one if needed, with its
// lock held.
func (e *Engine) acquire(ctx context.Context, userID string) *session.Session {
	sess, created := e.sessions.GetOrCreate(userID)
	if created {
		metrics.SetSessionsActive(e.sessions.Len())
		logging.WithContext(ctx).Debug("session created")
	}
	sess.Lock()
	return sess
}

// HandleText handles a text message: a restart command, the answer to a
// pending prompt, or anything else, which shows the welcome menu.
func (e *Engine) HandleText(ctx context.Context, userID, text string) Response {
	metrics.RecordInboundEvent("text")
	ctx = logging.WithUser(ctx, userID)
	sess := e.acquire(ctx, userID)
	defer sess.Unlock()

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "/start") || strings.EqualFold(text, "/restart") {
		sess.Restart()
		return welcomeResponse()
	}
	if sess.Awaiting.Pending() {
		return e.answer(ctx, sess, text)
	}
	return welcomeResponse()
}

// HandleAction handles an action token. Any pending prompt is dropped
// first; the action may arm a new one.
func (e *Engine) HandleAction(ctx context.Context, userID, token string) Response {
	metrics.RecordInboundEvent("action")
	ctx = logging.WithUser(ctx, userID)
	act, err := ParseAction(token)
	if err != nil {
		logging.WithContext(ctx).Debug("unknown action", zap.String("token", token))
		return textResponse("Unknown action.")
	}
	if act.Kind == ActionNoop {
		return Response{}
	}

	sess := e.acquire(ctx, userID)
	defer sess.Unlock()
	sess.ClearPrompt()

	switch act.Kind {
	case ActionFinish:
		return e.finish(ctx, sess)
	case ActionBack:
		return e.back(ctx, sess)
	case ActionUpload:
		return e.armUpload(sess)

	case ActionWelcomeBrowse:
		sess.Mode = session.ModeRegular
		sess.AdminAuthenticated = false
		sess.DirectAccessRoot = ""
		return e.showRoots(ctx, sess)
	case ActionWelcomeDirect:
		return e.startDirect(ctx, sess)
	case ActionWelcomeAdmin:
		sess.Mode = session.ModeAdmin
		sess.AdminAuthenticated = false
		sess.DirectAccessRoot = ""
		sess.Arm(session.PromptAdminPassword, "")
		return textResponse("Enter admin password:")

	case ActionAdminBrowse:
		if !sess.IsAdmin() {
			return textResponse("You must authenticate first.")
		}
		return e.showRoots(ctx, sess)
	case ActionAdminChangePassword:
		if !sess.IsAdmin() {
			return textResponse("Not authenticated.")
		}
		sess.Arm(session.PromptChangeAdminPassword, "")
		return textResponse("Send the new admin password:")
	case ActionAdminBack:
		sess.Restart()
		return welcomeResponse()

	case ActionOpenFolder:
		return e.openFolder(ctx, sess, act.FolderID)
	}

	// Folder-scoped admin actions.
	if !sess.IsAdmin() {
		return textResponse("Not authenticated.")
	}
	switch act.Kind {
	case ActionSetFolderPassword:
		sess.Arm(session.PromptSetFolderPassword, act.FolderID)
		return textResponse("Send new password for folder (or 'null' to remove):")
	case ActionGetFolderPassword:
		pw, ok := e.creds.FolderPassword(act.FolderID)
		if !ok {
			pw = "(none)"
		}
		return textResponse("Folder password: " + pw)
	case ActionAddDirectCode:
		sess.Arm(session.PromptAddDirectCode, act.FolderID)
		return textResponse("Send a new Direct Access code for this folder:")
	case ActionListDirectCodes:
		codes := e.creds.DirectAccessCodes(act.FolderID)
		if len(codes) == 0 {
			return textResponse("No Direct Access codes for this folder.")
		}
		return textResponse(bulletList("Direct Access codes:", codes))
	}
	return textResponse("Unknown action.")
}

func (e *Engine) finish(ctx context.Context, sess *session.Session) Response {
	e.sessions.Remove(sess.UserID())
	metrics.SetSessionsActive(e.sessions.Len())
	e.audit(sess, events.EventSessionFinished, "", "")
	logging.WithContext(ctx).Info("session finished")
	return textResponse("Session finished. Use /start to begin again.")
}

func (e *Engine) startDirect(ctx context.Context, sess *session.Session) Response {
	sess.Mode = session.ModeDirectAccess
	sess.AdminAuthenticated = false
	sess.DirectAccessRoot = ""
	sess.CurrentFolder = ""
	sess.Arm(session.PromptDirectFolderName, "")

	const prompt = "Type the folder name (or path) for Direct Access:\n" +
		"• Example name: Subfolder1\n" +
		"• Example path: Parent/Subfolder1\n" +
		"• Or paste folder ID"
	if err := e.ensureForest(ctx, sess); err != nil {
		return textResponse(prompt).prepend(loadFailure(err))
	}
	return textResponse(prompt)
}

func (e *Engine) audit(sess *session.Session, eventType, folderID, detail string) {
	e.events.Publish(events.Event{
		Type:     eventType,
		UserID:   sess.UserID(),
		FolderID: folderID,
		Detail:   detail,
	})
}

// throttled consumes a secret attempt for sess and reports whether the
// user is over the limit.
func (e *Engine) throttled(sess *session.Session, kind session.PromptKind) (Response, bool) {
	if e.limiter.Allow(sess.UserID()) {
		return Response{}, false
	}
	metrics.RecordSecretAttempt(kind.String(), "throttled")
	wait := e.limiter.RetryAfter(sess.UserID())
	return textResponse(fmt.Sprintf("Too many attempts. Try again in %s.", wait.Round(time.Second))), true
}

func loadFailure(err error) string {
	return "Could not load folders: " + err.Error()
}
