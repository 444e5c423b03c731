package nvue

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/newtron-network/nvconf/pkg/util"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr string
	}{
		{"empty", Request{}, ""},
		{"commands", Request{Commands: []string{"set interface swp1"}, Apply: true, Save: true}, ""},
		{"template", Request{Template: "set interface swp1", Atomic: true, Save: true}, ""},
		{"detach+apply", Request{Detach: true, Apply: true}, ""},
		{"apply+confirm_yes", Request{Apply: true, ConfirmYes: true}, ""},
		{"confirm with timeout", Request{Confirm: true, ConfirmTimeout: "90s"}, ""},
		{"commands|template", Request{Commands: []string{"a"}, Template: "b"}, "commands|template"},
		{"apply|atomic", Request{Apply: true, Atomic: true}, "apply|atomic"},
		{"confirm|atomic", Request{Confirm: true, Atomic: true}, "confirm|atomic"},
		{"confirm_no|atomic", Request{ConfirmNo: true, Atomic: true}, "confirm_no|atomic"},
		{"confirm_yes|atomic", Request{ConfirmYes: true, Atomic: true}, "confirm_yes|atomic"},
		{"confirm_no|confirm_yes", Request{ConfirmNo: true, ConfirmYes: true}, "confirm_no|confirm_yes"},
		{"confirm|confirm_yes", Request{Confirm: true, ConfirmYes: true}, "confirm|confirm_yes"},
		{"confirm|confirm_no", Request{Confirm: true, ConfirmNo: true}, "confirm|confirm_no"},
		{"detach|atomic", Request{Detach: true, Atomic: true}, "detach|atomic"},
		{"bad timeout", Request{Confirm: true, ConfirmTimeout: "10 minutes"}, "confirm_timeout"},
		{"bad timeout suffix", Request{Confirm: true, ConfirmTimeout: "1d"}, "confirm_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("Validate() error should match ErrValidationFailed")
			}
		})
	}
}

func TestRequest_ValidateAccumulates(t *testing.T) {
	req := Request{Atomic: true, Apply: true, Detach: true, Confirm: true}
	err := req.Validate()

	var vErr *util.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want *util.ValidationError", err)
	}
	if len(vErr.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(vErr.Errors), vErr.Errors)
	}
}

func TestRequest_WithDefaults(t *testing.T) {
	req := (&Request{}).WithDefaults()
	if req.ConfirmTimeout != "10m" {
		t.Errorf("ConfirmTimeout = %q, want 10m", req.ConfirmTimeout)
	}

	req = (&Request{ConfirmTimeout: "30s"}).WithDefaults()
	if req.ConfirmTimeout != "30s" {
		t.Errorf("ConfirmTimeout = %q, want 30s", req.ConfirmTimeout)
	}
}

func TestRequest_ResolveCommands(t *testing.T) {
	req := Request{Commands: []string{"set interface swp1", ""}}
	if got := req.ResolveCommands(); !reflect.DeepEqual(got, req.Commands) {
		t.Errorf("ResolveCommands() = %v, want explicit commands", got)
	}

	req = Request{Template: "set interface swp1\n\nset interface swp2\n"}
	want := []string{"set interface swp1", "set interface swp2"}
	if got := req.ResolveCommands(); !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveCommands() = %v, want %v", got, want)
	}

	if got := (&Request{}).ResolveCommands(); len(got) != 0 {
		t.Errorf("ResolveCommands() = %v, want empty", got)
	}
}

func TestSplitTemplate(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"\n\n", nil},
		{"set a", []string{"set a"}},
		{"set a\r\nset b\r\n", []string{"set a", "set b"}},
		{"  \nset a\n\t\nset b", []string{"set a", "set b"}},
		{"set a\rset b\r", []string{"set a", "set b"}},
		{"set a\vset b\fset c", []string{"set a", "set b", "set c"}},
		{"set a\x1cset b\x1dset c\x1eset d", []string{"set a", "set b", "set c", "set d"}},
		{"set a\u2028set b", []string{"set a", "set b"}},
	}
	for _, tt := range tests {
		if got := SplitTemplate(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitTemplate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadRequestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostname.yaml")
	content := `commands:
  - set platform hostname value cumulus-1
apply: true
confirm: true
confirm_timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing request: %v", err)
	}

	req, err := LoadRequestFile(path)
	if err != nil {
		t.Fatalf("LoadRequestFile failed: %v", err)
	}
	if !reflect.DeepEqual(req.Commands, []string{"set platform hostname value cumulus-1"}) {
		t.Errorf("Commands = %v", req.Commands)
	}
	if !req.Apply || !req.Confirm || req.ConfirmTimeout != "30s" {
		t.Errorf("request = %+v", req)
	}
}

func TestLoadRequestFile_Template(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ports.yaml")
	content := `template: |
  set interface swp1

  set interface swp2
atomic: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing request: %v", err)
	}

	req, err := LoadRequestFile(path)
	if err != nil {
		t.Fatalf("LoadRequestFile failed: %v", err)
	}
	if got := req.ResolveCommands(); len(got) != 2 {
		t.Errorf("ResolveCommands() = %q", got)
	}
	if !req.Atomic {
		t.Error("Atomic should be set")
	}
}

func TestLoadRequestFile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	if err := os.WriteFile(path, []byte("comands:\n  - set a\n"), 0644); err != nil {
		t.Fatalf("writing request: %v", err)
	}

	if _, err := LoadRequestFile(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadRequestFile_Missing(t *testing.T) {
	if _, err := LoadRequestFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDecodeRequest_Empty(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(""))
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}
	if !reflect.DeepEqual(req, &Request{}) {
		t.Errorf("req = %+v, want zero request", req)
	}
}
