package engine

import (
	"strings"

	"github.com/foldergate/foldergate/internal/session"
	"github.com/foldergate/foldergate/internal/tree"
)

// FolderRef is a folder the user can navigate to.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Response describes what the front-end should show. It carries no markup.
type Response struct {
	Text                 string      `json:"text"`
	NavigableFolders     []FolderRef `json:"navigable_folders"`
	FileNamesDisplayOnly []string    `json:"file_names"`
	AvailableActions     []string    `json:"available_actions"`
}

func textResponse(text string) Response {
	return Response{Text: text}
}

// prepend puts line above the response text.
func (r Response) prepend(line string) Response {
	if r.Text == "" {
		r.Text = line
	} else {
		r.Text = line + "\n\n" + r.Text
	}
	return r
}

const welcomeText = "Welcome! Choose an option:\n" +
	"• Browse (regular)\n" +
	"• Direct Access (folder + code)\n" +
	"• Admin (extra options)"

func welcomeResponse() Response {
	return Response{
		Text:             welcomeText,
		AvailableActions: []string{"welcome:browse", "welcome:direct", "welcome:admin", "finish"},
	}
}

func adminHomeResponse() Response {
	return Response{
		Text:             "Admin menu:",
		AvailableActions: []string{"admin:browse", "admin:change_pwd", "admin:back", "finish"},
	}
}

func rootsResponse(f *tree.Forest) Response {
	resp := Response{Text: "Choose a folder:"}
	for _, r := range f.Roots() {
		resp.NavigableFolders = append(resp.NavigableFolders, FolderRef{ID: r.ID, Name: r.Name})
		resp.AvailableActions = append(resp.AvailableActions, folderAction(ActionOpenFolder, r.ID))
	}
	resp.AvailableActions = append(resp.AvailableActions, "finish")
	return resp
}

// folderResponse renders the folder view for sess. The caller holds the
// session lock.
func folderResponse(sess *session.Session, folder tree.Folder) Response {
	resp := Response{Text: "Folder: " + breadcrumb(sess, folder)}
	for _, c := range sess.Forest.Children(folder.ID) {
		resp.NavigableFolders = append(resp.NavigableFolders, FolderRef{ID: c.ID, Name: c.Name})
		resp.AvailableActions = append(resp.AvailableActions, folderAction(ActionOpenFolder, c.ID))
	}
	resp.FileNamesDisplayOnly = append(resp.FileNamesDisplayOnly, folder.Files...)

	resp.AvailableActions = append(resp.AvailableActions, "upload")
	if sess.IsAdmin() {
		resp.AvailableActions = append(resp.AvailableActions,
			folderAction(ActionSetFolderPassword, folder.ID),
			folderAction(ActionGetFolderPassword, folder.ID),
			folderAction(ActionAddDirectCode, folder.ID),
			folderAction(ActionListDirectCodes, folder.ID),
		)
	}
	// A direct-access grant cannot climb above its root.
	if sess.Mode != session.ModeDirectAccess || folder.ID != sess.DirectAccessRoot {
		resp.AvailableActions = append(resp.AvailableActions, "back")
	}
	resp.AvailableActions = append(resp.AvailableActions, "finish")
	return resp
}

// breadcrumb joins the names from the top of the visible tree down to
// folder. A direct-access session sees nothing above its granted root.
func breadcrumb(sess *session.Session, folder tree.Folder) string {
	chain := sess.Forest.Ancestors(folder.ID)
	if sess.Mode == session.ModeDirectAccess {
		visible := []tree.Folder{folder}
		for i, f := range chain {
			if f.ID == sess.DirectAccessRoot {
				visible = chain[i:]
				break
			}
		}
		chain = visible
	}
	names := make([]string, len(chain))
	for i, f := range chain {
		names[i] = f.Name
	}
	return strings.Join(names, " / ")
}

// currentFolderResponse renders the open folder, or text alone if none is
// open. The caller holds the session lock.
func currentFolderResponse(sess *session.Session, text string) Response {
	folder, ok := sess.Forest.FindByID(sess.CurrentFolder)
	if !ok {
		return textResponse(text)
	}
	return folderResponse(sess, folder).prepend(text)
}

func bulletList(title string, items []string) string {
	return title + "\n• " + strings.Join(items, "\n• ")
}
