package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/foldergate/foldergate/internal/logging"
)

func init() {
	logging.InitNop()
}

func readFile(t *testing.T, path string) fileFormat {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return f
}

func TestOpenFirstRunPersistsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	s := Open(path)

	if !s.CheckAdminPassword(DefaultAdminPassword) {
		t.Error("default admin password rejected")
	}
	if got := readFile(t, path).AdminPassword; got != DefaultAdminPassword {
		t.Errorf("persisted admin password = %q", got)
	}
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	s := Open(path)
	if !s.CheckAdminPassword(DefaultAdminPassword) {
		t.Error("empty file should yield defaults")
	}
}

func TestOpenCorruptFileResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	if err := os.WriteFile(path, []byte(`{"adminPassword": "x", "folders": [`), 0600); err != nil {
		t.Fatal(err)
	}
	s := Open(path)
	if !s.CheckAdminPassword(DefaultAdminPassword) {
		t.Error("corrupt file should reset to the default admin password")
	}
	if got := readFile(t, path).AdminPassword; got != DefaultAdminPassword {
		t.Errorf("reset was not persisted, file has %q", got)
	}
}

func TestOpenReadsLegacyAndBlankFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	raw := `{
  "adminPassword": "   ",
  "folders": {
    "f1": {"password": "abc123", "directAccess": ["old1"], "directAccessCodes": ["new1"]},
    "f2": {"password": ""},
    "f3": {}
  }
}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}
	s := Open(path)

	if !s.CheckAdminPassword(DefaultAdminPassword) {
		t.Error("blank admin password should read as the default")
	}
	if pw, ok := s.FolderPassword("f1"); !ok || pw != "abc123" {
		t.Errorf("FolderPassword(f1) = %q, %v", pw, ok)
	}
	if _, ok := s.FolderPassword("f2"); ok {
		t.Error("blank folder password should read as none")
	}
	if got := s.DirectAccessCodes("f1"); !reflect.DeepEqual(got, []string{"new1", "old1"}) {
		t.Errorf("DirectAccessCodes(f1) = %v", got)
	}
	if s.DirectAccessCodes("f3") != nil {
		t.Error("f3 should have no codes")
	}
}

func TestChangeAdminPasswordSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	s := Open(path)

	if err := s.ChangeAdminPassword("n3w-pass"); err != nil {
		t.Fatalf("ChangeAdminPassword: %v", err)
	}
	if s.CheckAdminPassword(DefaultAdminPassword) {
		t.Error("old password still accepted")
	}
	if !s.CheckAdminPassword("n3w-pass") {
		t.Error("new password rejected")
	}

	reloaded := Open(path)
	if reloaded.CheckAdminPassword(DefaultAdminPassword) || !reloaded.CheckAdminPassword("n3w-pass") {
		t.Error("password change did not survive reload")
	}

	if err := s.ChangeAdminPassword("  "); err != ErrBlankSecret {
		t.Errorf("blank password: err = %v, want ErrBlankSecret", err)
	}
}

func TestFolderPasswords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	s := Open(path)

	if _, ok := s.FolderPassword("f2"); ok {
		t.Fatal("unset folder has a password")
	}
	if err := s.SetFolderPassword("f2", "secret"); err != nil {
		t.Fatal(err)
	}
	if pw, ok := Open(path).FolderPassword("f2"); !ok || pw != "secret" {
		t.Errorf("after reload FolderPassword(f2) = %q, %v", pw, ok)
	}

	if err := s.SetFolderPassword("f2", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.FolderPassword("f2"); ok {
		t.Error("empty password should clear")
	}
	// Records with nothing left are not written.
	if _, ok := readFile(t, path).Folders["f2"]; ok {
		t.Error("cleared folder still in file")
	}
}

func TestDirectAccessCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "security.json")
	s := Open(path)

	for _, c := range []string{"ABC123", "XYZ", "ABC123"} {
		if err := s.AddDirectAccessCode("f1", c); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.DirectAccessCodes("f1"); !reflect.DeepEqual(got, []string{"ABC123", "XYZ"}) {
		t.Errorf("DirectAccessCodes = %v", got)
	}
	if !s.HasDirectAccessCode("f1", "ABC123") {
		t.Error("registered code rejected")
	}
	if s.HasDirectAccessCode("f1", "abc123") {
		t.Error("codes are case-sensitive")
	}
	if s.HasDirectAccessCode("f2", "ABC123") {
		t.Error("code leaked to another folder")
	}
	if err := s.AddDirectAccessCode("f1", ""); err != ErrBlankSecret {
		t.Errorf("blank code: err = %v", err)
	}

	f := readFile(t, path)
	if got := f.Folders["f1"].DirectAccessCodes; !reflect.DeepEqual(got, []string{"ABC123", "XYZ"}) {
		t.Errorf("persisted codes = %v", got)
	}
	if f.Folders["f1"].LegacyDirectAccess != nil {
		t.Error("legacy key written")
	}
}

func TestSaveFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	s := Open(filepath.Join(blocker, "security.json"))

	err := s.ChangeAdminPassword("other")
	if err == nil || !strings.Contains(err.Error(), "save credentials") {
		t.Fatalf("err = %v, want save failure", err)
	}
	if !s.CheckAdminPassword(DefaultAdminPassword) {
		t.Error("admin password change was not rolled back")
	}

	if err := s.SetFolderPassword("f1", "pw"); err == nil {
		t.Fatal("expected save failure")
	}
	if _, ok := s.FolderPassword("f1"); ok {
		t.Error("folder password change was not rolled back")
	}

	if err := s.AddDirectAccessCode("f1", "code"); err == nil {
		t.Fatal("expected save failure")
	}
	if s.HasDirectAccessCode("f1", "code") {
		t.Error("code addition was not rolled back")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "security.json"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.AddDirectAccessCode("f1", string(rune('a'+i)))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.HasDirectAccessCode("f1", "a")
			_ = s.CheckAdminPassword(DefaultAdminPassword)
		}()
	}
	wg.Wait()

	if got := len(s.DirectAccessCodes("f1")); got != 8 {
		t.Errorf("codes = %d, want 8", got)
	}
}
