package engine

import (
	"context"
	"strings"

	"github.com/foldergate/foldergate/internal/events"
	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
	"github.com/foldergate/foldergate/internal/session"
)

// blankText is the re-prompt for an empty answer, by prompt kind.
var blankText = map[session.PromptKind]string{
	session.PromptAdminPassword:       "Password cannot be blank. Enter admin password:",
	session.PromptChangeAdminPassword: "Password cannot be blank. Send the new admin password:",
	session.PromptDirectFolderName:    "Folder name cannot be blank. Type the folder name (or path) for Direct Access:",
	session.PromptDirectCode:          "Code cannot be blank. Enter direct access code:",
	session.PromptFolderPassword:      "Password cannot be blank. Enter password:",
	session.PromptSetFolderPassword:   "Password cannot be blank. Send new password for folder (or 'null' to remove):",
	session.PromptAddDirectCode:       "Code cannot be blank. Send a new Direct Access code for this folder:",
}

// answer consumes text as the answer to the pending prompt. The prompt is
// cleared only by a transition that completes; failures leave it armed.
func (e *Engine) answer(ctx context.Context, sess *session.Session, text string) Response {
	kind := sess.Awaiting.Kind
	if text == "" {
		return textResponse(blankText[kind])
	}

	switch kind {
	case session.PromptAdminPassword:
		return e.answerAdminPassword(ctx, sess, text)
	case session.PromptChangeAdminPassword:
		return e.answerChangeAdminPassword(ctx, sess, text)
	case session.PromptDirectFolderName:
		return e.answerDirectFolderName(ctx, sess, text)
	case session.PromptDirectCode:
		return e.answerDirectCode(ctx, sess, text)
	case session.PromptFolderPassword:
		return e.answerFolderPassword(ctx, sess, text)
	case session.PromptSetFolderPassword:
		return e.answerSetFolderPassword(ctx, sess, text)
	case session.PromptAddDirectCode:
		return e.answerAddDirectCode(ctx, sess, text)
	}
	sess.ClearPrompt()
	return welcomeResponse()
}

func (e *Engine) answerAdminPassword(ctx context.Context, sess *session.Session, text string) Response {
	const kind = session.PromptAdminPassword
	if resp, limited := e.throttled(sess, kind); limited {
		return resp
	}
	log := logging.WithContext(ctx)

	if !e.creds.CheckAdminPassword(text) {
		metrics.RecordSecretAttempt(kind.String(), "failure")
		e.audit(sess, events.EventAdminLoginFailed, "", "")
		log.Warn("admin login failed")
		return textResponse("Incorrect admin password. Try again or /start.")
	}

	metrics.RecordSecretAttempt(kind.String(), "success")
	sess.Mode = session.ModeAdmin
	sess.AdminAuthenticated = true
	sess.ClearPrompt()
	e.audit(sess, events.EventAdminLogin, "", "")
	log.Info("admin authenticated")
	return adminHomeResponse().prepend("Admin authenticated.")
}

func (e *Engine) answerChangeAdminPassword(ctx context.Context, sess *session.Session, text string) Response {
	sess.ClearPrompt()
	if !sess.IsAdmin() {
		return textResponse("Not authenticated.")
	}
	if err := e.creds.ChangeAdminPassword(text); err != nil {
		logging.WithContext(ctx).Error("change admin password failed", logging.Err(err))
		return adminHomeResponse().prepend("Could not change admin password: " + err.Error())
	}
	e.audit(sess, events.EventCredentialsChanged, "", "admin_password")
	logging.WithContext(ctx).Info("admin password changed")
	return adminHomeResponse().prepend("Admin password changed.")
}

func (e *Engine) answerDirectFolderName(ctx context.Context, sess *session.Session, text string) Response {
	if err := e.ensureForest(ctx, sess); err != nil {
		return textResponse(loadFailure(err))
	}
	folder, ok := sess.Forest.Resolve(text)
	if !ok {
		return textResponse("Folder not found. Try again (name, path like Parent/Sub, or folder ID):")
	}
	sess.Arm(session.PromptDirectCode, folder.ID)
	return textResponse("Enter direct access code for '" + folder.Name + "':")
}

func (e *Engine) answerDirectCode(ctx context.Context, sess *session.Session, text string) Response {
	const kind = session.PromptDirectCode
	folderID := sess.Awaiting.FolderID
	folder, ok := sess.Forest.FindByID(folderID)
	if !ok {
		sess.Arm(session.PromptDirectFolderName, "")
		return textResponse("That folder is no longer available. Type the folder name (or path) for Direct Access:")
	}
	if resp, limited := e.throttled(sess, kind); limited {
		return resp
	}
	log := logging.WithContext(ctx)

	if !e.authz.AdmitDirect(sess, folderID, text) {
		metrics.RecordSecretAttempt(kind.String(), "failure")
		e.audit(sess, events.EventDirectAccessDenied, folderID, "")
		log.Warn("direct access code rejected", logging.FolderID(folderID))
		return textResponse("Invalid code. Try again:")
	}

	metrics.RecordSecretAttempt(kind.String(), "success")
	sess.ClearPrompt()
	e.audit(sess, events.EventDirectAccessGranted, folderID, "")
	log.Info("direct access granted", logging.FolderID(folderID))
	return folderResponse(sess, folder).prepend("Direct access granted to: " + folder.Name)
}

func (e *Engine) answerFolderPassword(ctx context.Context, sess *session.Session, text string) Response {
	const kind = session.PromptFolderPassword
	folderID := sess.Awaiting.FolderID
	folder, ok := sess.Forest.FindByID(folderID)
	if !ok {
		sess.ClearPrompt()
		return textResponse("Folder not found.")
	}
	if resp, limited := e.throttled(sess, kind); limited {
		return resp
	}

	if !e.authz.CheckFolderPassword(folderID, text) {
		metrics.RecordSecretAttempt(kind.String(), "failure")
		logging.WithContext(ctx).Info("folder password rejected", logging.FolderID(folderID))
		return textResponse("Incorrect password, please try again")
	}

	metrics.RecordSecretAttempt(kind.String(), "success")
	sess.MarkUnlocked(folderID)
	sess.CurrentFolder = folderID
	sess.ClearPrompt()
	e.audit(sess, events.EventFolderUnlocked, folderID, "")
	return folderResponse(sess, folder).prepend("Access granted to: " + folder.Name)
}

func (e *Engine) answerSetFolderPassword(ctx context.Context, sess *session.Session, text string) Response {
	folderID := sess.Awaiting.FolderID
	sess.ClearPrompt()
	if !sess.IsAdmin() {
		return textResponse("Not authenticated.")
	}

	password, done := text, "Password set."
	if strings.EqualFold(text, "null") {
		password, done = "", "Password removed for folder."
	}
	if err := e.creds.SetFolderPassword(folderID, password); err != nil {
		logging.WithContext(ctx).Error("set folder password failed", logging.FolderID(folderID), logging.Err(err))
		return currentFolderResponse(sess, "Could not save folder password: "+err.Error())
	}
	e.audit(sess, events.EventCredentialsChanged, folderID, "folder_password")
	return currentFolderResponse(sess, done)
}

func (e *Engine) answerAddDirectCode(ctx context.Context, sess *session.Session, text string) Response {
	folderID := sess.Awaiting.FolderID
	sess.ClearPrompt()
	if !sess.IsAdmin() {
		return textResponse("Not authenticated.")
	}
	if err := e.creds.AddDirectAccessCode(folderID, text); err != nil {
		logging.WithContext(ctx).Error("add direct access code failed", logging.FolderID(folderID), logging.Err(err))
		return currentFolderResponse(sess, "Could not save direct access code: "+err.Error())
	}
	e.audit(sess, events.EventCredentialsChanged, folderID, "direct_access_code")
	return currentFolderResponse(sess, "Direct code added.")
}
