package engine

import (
	"errors"
	"strings"
)

// ErrUnknownAction is returned by ParseAction for tokens outside the
// closed action set.
var ErrUnknownAction = errors.New("unknown action")

// ActionKind identifies a front-end action.
type ActionKind int

const (
	ActionNoop ActionKind = iota
	ActionFinish
	ActionBack
	ActionUpload
	ActionWelcomeBrowse
	ActionWelcomeDirect
	ActionWelcomeAdmin
	ActionAdminBrowse
	ActionAdminChangePassword
	ActionAdminBack
	ActionOpenFolder
	ActionSetFolderPassword
	ActionGetFolderPassword
	ActionAddDirectCode
	ActionListDirectCodes
)

// Action is a parsed action token. FolderID is set for the folder-scoped
// kinds.
type Action struct {
	Kind     ActionKind
	FolderID string
}

var fixedTokens = map[string]ActionKind{
	"noop":             ActionNoop,
	"finish":           ActionFinish,
	"back":             ActionBack,
	"upload":           ActionUpload,
	"welcome:browse":   ActionWelcomeBrowse,
	"welcome:direct":   ActionWelcomeDirect,
	"welcome:admin":    ActionWelcomeAdmin,
	"admin:browse":     ActionAdminBrowse,
	"admin:change_pwd": ActionAdminChangePassword,
	"admin:back":       ActionAdminBack,
}

// folderPrefixes is checked in order; no prefix is a prefix of another.
var folderPrefixes = []struct {
	prefix string
	kind   ActionKind
}{
	{"folder:", ActionOpenFolder},
	{"admin:setpwd:", ActionSetFolderPassword},
	{"admin:getpwd:", ActionGetFolderPassword},
	{"admin:adddirect:", ActionAddDirectCode},
	{"admin:listdirect:", ActionListDirectCodes},
}

// ParseAction parses a front-end action token.
func ParseAction(token string) (Action, error) {
	if kind, ok := fixedTokens[token]; ok {
		return Action{Kind: kind}, nil
	}
	for _, p := range folderPrefixes {
		if id, ok := strings.CutPrefix(token, p.prefix); ok {
			if id == "" {
				break
			}
			return Action{Kind: p.kind, FolderID: id}, nil
		}
	}
	return Action{}, ErrUnknownAction
}

// Token renders the action back to its wire form.
func (a Action) Token() string {
	for tok, kind := range fixedTokens {
		if kind == a.Kind {
			return tok
		}
	}
	for _, p := range folderPrefixes {
		if p.kind == a.Kind {
			return p.prefix + a.FolderID
		}
	}
	return "noop"
}

func (a Action) String() string {
	return a.Token()
}

func folderAction(kind ActionKind, id string) string {
	return Action{Kind: kind, FolderID: id}.Token()
}
