package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/foldergate/foldergate/internal/config"
	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/provider/memory"
)

func init() {
	logging.InitNop()
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Provider: "ftp"})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
}

func TestNewLocal(t *testing.T) {
	p, err := New(context.Background(), &config.Config{Provider: "local", LocalRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	if p.Type() != "local" {
		t.Errorf("Type = %q", p.Type())
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"report.pdf", "report.pdf", false},
		{"  report.pdf ", "report.pdf", false},
		{"../../etc/passwd", "passwd", false},
		{`C:\Users\me\photo.jpg`, "photo.jpg", false},
		{"..", "", true},
		{"", "", true},
		{"dir/", "dir", false},
		{"/", "", true},
	}
	for _, tt := range tests {
		got, err := CleanName(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CleanName(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScanAndUpload(t *testing.T) {
	p := memory.New(memory.Folder{ID: "f1", Name: "Reports", Children: []memory.Folder{{ID: "f3", Name: "2024"}}})

	forest, err := Scan(context.Background(), p)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if forest.Len() != 2 {
		t.Errorf("Len = %d", forest.Len())
	}

	ref, err := Upload(context.Background(), p, "f3", "sub/../notes.txt", strings.NewReader("hi"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ref != "memory://f3/notes.txt" {
		t.Errorf("ref = %q", ref)
	}
	ups := p.Uploads()
	if len(ups) != 1 || string(ups[0].Data) != "hi" {
		t.Errorf("uploads = %+v", ups)
	}

	if _, err := Upload(context.Background(), p, "f3", "..", strings.NewReader("")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("err = %v, want ErrInvalidName", err)
	}
}

func TestScanFailure(t *testing.T) {
	p := memory.New()
	p.ListErr = errors.New("backend offline")
	if _, err := Scan(context.Background(), p); err == nil || !strings.Contains(err.Error(), "backend offline") {
		t.Errorf("err = %v", err)
	}
}
