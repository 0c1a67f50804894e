package logging

import "go.uber.org/zap"

func String(key, val string) zap.Field { return zap.String(key, val) }
func Int(key string, val int) zap.Field { return zap.Int(key, val) }
func Err(err error) zap.Field           { return zap.Error(err) }

// UserID tags an entry with the chat user it concerns.
func UserID(id string) zap.Field {
	return zap.String("user_id", id)
}

// FolderID tags an entry with a folder id.
func FolderID(id string) zap.Field {
	return zap.String("folder_id", id)
}

// Provider tags an entry with the directory provider type.
func Provider(name string) zap.Field {
	return zap.String("provider", name)
}
