// Package nvue drives a Cumulus Linux NVUE configuration session: detach,
// run a batch of nv commands, diff the pending buffer, then optionally
// apply and save.
package nvue

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/nvconf/pkg/util"
)

// DefaultConfirmTimeout is the rollback deadline used with Confirm when
// none is given.
const DefaultConfirmTimeout = "10m"

var confirmTimeoutRe = regexp.MustCompile(`^[0-9]+[smh]$`)

// Request describes one configuration session. Field names follow the
// option names accepted on the command line and in request files.
type Request struct {
	Commands []string `yaml:"commands,omitempty" json:"commands,omitempty"`
	Template string   `yaml:"template,omitempty" json:"template,omitempty"`

	Apply  bool `yaml:"apply" json:"apply"`
	Atomic bool `yaml:"atomic" json:"atomic"`
	Detach bool `yaml:"detach" json:"detach"`
	Save   bool `yaml:"save" json:"save"`

	Confirm        bool   `yaml:"confirm" json:"confirm"`
	ConfirmTimeout string `yaml:"confirm_timeout,omitempty" json:"confirm_timeout,omitempty"`
	ConfirmYes     bool   `yaml:"confirm_yes" json:"confirm_yes"`
	ConfirmNo      bool   `yaml:"confirm_no" json:"confirm_no"`

	// CheckMode turns the session into a dry run: the buffer is always
	// detached first and apply/save never happen.
	CheckMode bool `yaml:"check_mode" json:"check_mode"`
}

// WithDefaults fills unset optional fields and returns the request.
func (r *Request) WithDefaults() *Request {
	if r.ConfirmTimeout == "" {
		r.ConfirmTimeout = DefaultConfirmTimeout
	}
	return r
}

// exclusive lists option pairs where at most one may be set.
var exclusive = [][2]string{
	{"commands", "template"},
	{"apply", "atomic"},
	{"confirm", "atomic"},
	{"confirm_no", "atomic"},
	{"confirm_yes", "atomic"},
	{"confirm_no", "confirm_yes"},
	{"confirm", "confirm_yes"},
	{"confirm", "confirm_no"},
	{"detach", "atomic"},
}

func (r *Request) isSet(option string) bool {
	switch option {
	case "commands":
		return len(r.Commands) > 0
	case "template":
		return r.Template != ""
	case "apply":
		return r.Apply
	case "atomic":
		return r.Atomic
	case "detach":
		return r.Detach
	case "confirm":
		return r.Confirm
	case "confirm_yes":
		return r.ConfirmYes
	case "confirm_no":
		return r.ConfirmNo
	}
	return false
}

// Validate checks option combinations. It must pass before a session
// touches the device.
func (r *Request) Validate() error {
	v := &util.ValidationBuilder{}
	for _, pair := range exclusive {
		if r.isSet(pair[0]) && r.isSet(pair[1]) {
			v.AddErrorf("parameters are mutually exclusive: %s|%s", pair[0], pair[1])
		}
	}
	if r.Confirm && r.ConfirmTimeout != "" {
		v.Add(confirmTimeoutRe.MatchString(r.ConfirmTimeout),
			fmt.Sprintf("confirm_timeout %q must be a number followed by s, m or h", r.ConfirmTimeout))
	}
	return v.Build()
}

// ResolveCommands returns the explicit command list, or the template split
// into lines when no commands were given.
func (r *Request) ResolveCommands() []string {
	if len(r.Commands) > 0 {
		return r.Commands
	}
	return SplitTemplate(r.Template)
}

// SplitTemplate breaks a rendered multi-line template into command lines,
// dropping blank ones. Any line break ends a line: \n, \r\n, a lone \r,
// \v, \f, the \x1c-\x1e separators, NEL and the Unicode line/paragraph
// separators.
func SplitTemplate(s string) []string {
	var lines []string
	for _, line := range strings.FieldsFunc(s, isLineBreak) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// LoadRequestFile reads a YAML request file. Unknown keys are rejected so a
// misspelled option does not silently fall back to its default.
func LoadRequestFile(path string) (*Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading request %s: %w", path, err)
	}
	defer f.Close()

	req, err := DecodeRequest(f)
	if err != nil {
		return nil, fmt.Errorf("parsing request %s: %w", path, err)
	}
	return req, nil
}

// DecodeRequest decodes a single YAML request document.
func DecodeRequest(r io.Reader) (*Request, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	req := &Request{}
	if err := dec.Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return req, nil
}
