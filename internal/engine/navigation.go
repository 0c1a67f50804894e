package engine

import (
	"context"

	"github.com/foldergate/foldergate/internal/access"
	"github.com/foldergate/foldergate/internal/events"
	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/provider"
	"github.com/foldergate/foldergate/internal/session"
)

const deniedText = "You can only navigate inside the granted folder."

// ensureForest loads the folder tree into sess if it has none yet.
func (e *Engine) ensureForest(ctx context.Context, sess *session.Session) error {
	if sess.Forest.Len() > 0 {
		return nil
	}
	forest, err := provider.Scan(ctx, e.provider)
	if err != nil {
		return err
	}
	sess.Forest = forest
	return nil
}

// showRoots rescans the provider and lists the top-level folders. On a
// provider failure the previous tree is kept.
func (e *Engine) showRoots(ctx context.Context, sess *session.Session) Response {
	forest, err := provider.Scan(ctx, e.provider)
	if err != nil {
		logging.WithContext(ctx).Warn("list folders failed", logging.Err(err))
		return textResponse(loadFailure(err))
	}
	sess.Forest = forest
	sess.CurrentFolder = ""
	return rootsResponse(forest)
}

// openFolder authorizes and opens folderID.
func (e *Engine) openFolder(ctx context.Context, sess *session.Session, folderID string) Response {
	if err := e.ensureForest(ctx, sess); err != nil {
		return textResponse(loadFailure(err))
	}
	folder, ok := sess.Forest.FindByID(folderID)
	if !ok {
		return textResponse("Folder not found.")
	}

	switch e.authz.Authorize(sess, folderID) {
	case access.Deny:
		e.audit(sess, events.EventFolderDenied, folderID, "")
		logging.WithContext(ctx).Info("navigation denied", logging.FolderID(folderID))
		return textResponse(deniedText)
	case access.Prompt:
		sess.Arm(session.PromptFolderPassword, folderID)
		return textResponse("This folder is protected. Enter password:")
	}

	sess.CurrentFolder = folderID
	return folderResponse(sess, folder)
}

// back opens the parent of the current folder, or the root listing from a
// top-level folder. Both go through the same checks as opening a folder.
func (e *Engine) back(ctx context.Context, sess *session.Session) Response {
	if sess.CurrentFolder != "" {
		if parent, ok := sess.Forest.Parent(sess.CurrentFolder); ok {
			return e.openFolder(ctx, sess, parent.ID)
		}
	}
	if sess.Mode == session.ModeDirectAccess {
		e.audit(sess, events.EventFolderDenied, sess.CurrentFolder, "back")
		return textResponse(deniedText)
	}
	return e.showRoots(ctx, sess)
}

func (e *Engine) armUpload(sess *session.Session) Response {
	folder, ok := sess.Forest.FindByID(sess.CurrentFolder)
	if !ok {
		return textResponse("Choose a folder first, then tap 'Upload Here'.")
	}
	sess.WaitingForUpload = true
	return textResponse("Send the file now to upload into: " + folder.Name)
}
