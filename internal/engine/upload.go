package engine

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foldergate/foldergate/internal/events"
	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
	"github.com/foldergate/foldergate/internal/provider"
)

// HandleFile uploads r into the open folder. Files are accepted whenever a
// folder is open, whether or not "upload" was tapped first.
func (e *Engine) HandleFile(ctx context.Context, userID string, r io.Reader, name string) Response {
	metrics.RecordInboundEvent("file")
	ctx = logging.WithUser(ctx, userID)
	sess := e.acquire(ctx, userID)
	defer sess.Unlock()

	folder, ok := sess.Forest.FindByID(sess.CurrentFolder)
	if !ok {
		return textResponse("Please choose a folder first (Browse) and then try again.")
	}
	if strings.TrimSpace(name) == "" {
		name = "document_" + uuid.NewString()[:8]
	}

	log := logging.WithContext(ctx).With(logging.FolderID(folder.ID))
	ref, err := provider.Upload(ctx, e.provider, folder.ID, name, r)
	if err != nil {
		log.Warn("upload failed", zap.String("name", name), logging.Err(err))
		return currentFolderResponse(sess, "Upload failed: "+err.Error())
	}

	sess.WaitingForUpload = false
	e.audit(sess, events.EventFileUploaded, folder.ID, name)
	log.Info("file uploaded", zap.String("name", name), zap.String("ref", ref))
	return currentFolderResponse(sess, "File uploaded to: "+folder.Name+"\nReference: "+ref)
}
