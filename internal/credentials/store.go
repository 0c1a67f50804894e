// Package credentials persists the admin password, per-folder passwords and
// per-folder direct-access codes in a single JSON file.
//
// Secrets are stored and compared in clear text.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
)

// DefaultAdminPassword is installed on first run and after a corrupt file.
const DefaultAdminPassword = "1234567890"

// ErrBlankSecret is returned when a blank admin password or code is offered.
var ErrBlankSecret = errors.New("secret must not be blank")

// fileFormat is the on-disk layout.
type fileFormat struct {
	AdminPassword string                `json:"adminPassword"`
	Folders       map[string]fileFolder `json:"folders,omitempty"`
}

type fileFolder struct {
	Password          string   `json:"password,omitempty"`
	DirectAccessCodes []string `json:"directAccessCodes,omitempty"`
	// Older files name the code list "directAccess". Read only.
	LegacyDirectAccess []string `json:"directAccess,omitempty"`
}

type folderRecord struct {
	password string
	codes    map[string]struct{}
}

func (r *folderRecord) clone() *folderRecord {
	if r == nil {
		return nil
	}
	c := &folderRecord{password: r.password, codes: make(map[string]struct{}, len(r.codes))}
	for code := range r.codes {
		c.codes[code] = struct{}{}
	}
	return c
}

// Store is a file-backed credential store. All writes share one lock and
// are on disk before the mutating call returns.
type Store struct {
	path string

	mu            sync.RWMutex
	adminPassword string
	folders       map[string]*folderRecord
}

// Open loads the store at path. A missing, empty, or unreadable file yields
// the defaults, which are written back immediately. Open never fails; a
// failed write is logged and retried on the next mutation.
func Open(path string) *Store {
	s := &Store{path: path, adminPassword: DefaultAdminPassword, folders: make(map[string]*folderRecord)}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0):
		logging.Info("initializing credential store with defaults", logging.String("path", path))
	case err != nil:
		logging.Warn("credential file unreadable, resetting to defaults",
			logging.String("path", path), logging.Err(err))
	default:
		if perr := s.decodeLocked(data); perr != nil {
			logging.Warn("credential file corrupt, resetting to defaults",
				logging.String("path", path), logging.Err(perr))
			s.adminPassword = DefaultAdminPassword
			s.folders = make(map[string]*folderRecord)
		} else {
			logging.Info("credential store loaded",
				logging.String("path", path), logging.Int("folders", len(s.folders)))
			return s
		}
	}

	if err := s.saveLocked(); err != nil {
		logging.Error("failed to write credential file", logging.String("path", path), logging.Err(err))
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) decodeLocked(data []byte) error {
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	if strings.TrimSpace(f.AdminPassword) != "" {
		s.adminPassword = f.AdminPassword
	}
	for id, ff := range f.Folders {
		rec := &folderRecord{codes: make(map[string]struct{})}
		if strings.TrimSpace(ff.Password) != "" {
			rec.password = ff.Password
		}
		for _, c := range append(ff.DirectAccessCodes, ff.LegacyDirectAccess...) {
			if c != "" {
				rec.codes[c] = struct{}{}
			}
		}
		s.folders[id] = rec
	}
	return nil
}

// saveLocked writes the store via a temp file and rename so readers of the
// file never see a partial write. Caller holds the write lock.
func (s *Store) saveLocked() (err error) {
	defer func() { metrics.RecordCredentialSave(err == nil) }()

	out := fileFormat{AdminPassword: s.adminPassword}
	for id, rec := range s.folders {
		if rec.password == "" && len(rec.codes) == 0 {
			continue
		}
		if out.Folders == nil {
			out.Folders = make(map[string]fileFolder)
		}
		out.Folders[id] = fileFolder{Password: rec.password, DirectAccessCodes: sortedCodes(rec.codes)}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir for credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for credentials: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for credentials: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", s.path, err)
	}
	return nil
}

// mutate applies a change under the write lock and persists it. apply
// returns a function that reverts the change if the save fails.
func (s *Store) mutate(apply func() (undo func())) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := apply()
	if err := s.saveLocked(); err != nil {
		undo()
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// mutateFolder runs fn on the record for id, creating it if needed, and
// restores the previous record if the save fails.
func (s *Store) mutateFolder(id string, fn func(rec *folderRecord)) error {
	return s.mutate(func() func() {
		prev, existed := s.folders[id]
		rec := prev.clone()
		if rec == nil {
			rec = &folderRecord{codes: make(map[string]struct{})}
		}
		fn(rec)
		s.folders[id] = rec
		return func() {
			if existed {
				s.folders[id] = prev
			} else {
				delete(s.folders, id)
			}
		}
	})
}

// CheckAdminPassword reports whether candidate is the current admin password.
func (s *Store) CheckAdminPassword(candidate string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return candidate == s.adminPassword
}

// ChangeAdminPassword replaces the admin password.
func (s *Store) ChangeAdminPassword(newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return ErrBlankSecret
	}
	return s.mutate(func() func() {
		old := s.adminPassword
		s.adminPassword = newPassword
		return func() { s.adminPassword = old }
	})
}

// FolderPassword returns the password protecting id, if any.
func (s *Store) FolderPassword(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.folders[id]
	if rec == nil || rec.password == "" {
		return "", false
	}
	return rec.password, true
}

// SetFolderPassword sets the password for id. A blank password clears it.
func (s *Store) SetFolderPassword(id, password string) error {
	if strings.TrimSpace(password) == "" {
		password = ""
	}
	return s.mutateFolder(id, func(rec *folderRecord) {
		rec.password = password
	})
}

// DirectAccessCodes returns the codes registered for id, sorted.
func (s *Store) DirectAccessCodes(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.folders[id]
	if rec == nil {
		return nil
	}
	return sortedCodes(rec.codes)
}

// AddDirectAccessCode registers code as a direct-access code for id.
func (s *Store) AddDirectAccessCode(id, code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrBlankSecret
	}
	return s.mutateFolder(id, func(rec *folderRecord) {
		rec.codes[code] = struct{}{}
	})
}

// HasDirectAccessCode reports whether code grants direct access to id.
func (s *Store) HasDirectAccessCode(id, code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.folders[id]
	if rec == nil {
		return false
	}
	_, ok := rec.codes[code]
	return ok
}

func sortedCodes(codes map[string]struct{}) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, 0, len(codes))
	for c := range codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
