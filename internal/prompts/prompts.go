// Package prompts provides the templates the agent builds its prompts and
// framework messages from.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

// Template ids used by the agent loop.
const (
	System         = "agent.system"
	Tools          = "agent.tools"
	Dynamic        = "agent.dynamic"
	UserMessage    = "fw.user_message"
	MsgRepeat      = "fw.msg_repeat"
	Error          = "fw.error"
	MsgMisformat   = "fw.msg_misformat"
	Intervention   = "fw.intervention"
	ToolResponse   = "fw.tool_response"
	ToolNotFound   = "fw.tool_not_found"
	templateSuffix = ".md"
)

// ErrNotFound is returned for unknown template ids.
var ErrNotFound = errors.New("template not found")

//go:embed defaults/*.md
var defaults embed.FS

// Source reads and writes templates.
type Source interface {
	// ReadTemplate returns the template id with every '{{key}}' replaced by
	// vars[key].
	ReadTemplate(id string, vars map[string]string) (string, error)
	// WriteTemplate replaces the content of an existing template.
	WriteTemplate(id, text string) error
}

// Dir is a Source backed by '<path>/<id>.md' files.
type Dir struct {
	path string
}

// NewDir returns a Dir at path, creating it and seeding every missing
// template with its default.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create prompts dir: %w", err)
	}
	entries, err := fs.ReadDir(defaults, "defaults")
	if err != nil {
		return nil, fmt.Errorf("failed to read default prompts: %w", err)
	}
	for _, e := range entries {
		target := filepath.Join(path, e.Name())
		if _, err := os.Stat(target); err == nil {
			continue
		}
		b, err := defaults.ReadFile("defaults/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read default prompt '%v': %w", e.Name(), err)
		}
		if err := os.WriteFile(target, b, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write default prompt '%v': %w", e.Name(), err)
		}
		if misc.Truthy(os.Getenv("DEBUG")) {
			ancli.PrintOK(fmt.Sprintf("created default prompt: '%v'\n", target))
		}
	}
	return &Dir{path: path}, nil
}

func (d *Dir) file(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("template '%v': %w", id, ErrNotFound)
	}
	return filepath.Join(d.path, id+templateSuffix), nil
}

func (d *Dir) ReadTemplate(id string, vars map[string]string) (string, error) {
	file, err := d.file(id)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("template '%v': %w", id, ErrNotFound)
		}
		return "", fmt.Errorf("failed to read template '%v': %w", id, err)
	}
	return Render(string(b), vars), nil
}

func (d *Dir) WriteTemplate(id, text string) error {
	file, err := d.file(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("template '%v': %w", id, ErrNotFound)
	}
	if err := os.WriteFile(file, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write template '%v': %w", id, err)
	}
	return nil
}

// Map is an in-memory Source, mostly useful in tests.
type Map map[string]string

func (m Map) ReadTemplate(id string, vars map[string]string) (string, error) {
	t, ok := m[id]
	if !ok {
		return "", fmt.Errorf("template '%v': %w", id, ErrNotFound)
	}
	return Render(t, vars), nil
}

func (m Map) WriteTemplate(id, text string) error {
	if _, ok := m[id]; !ok {
		return fmt.Errorf("template '%v': %w", id, ErrNotFound)
	}
	m[id] = text
	return nil
}

// Defaults returns the embedded templates as a Map.
func Defaults() Map {
	m := Map{}
	entries, _ := fs.ReadDir(defaults, "defaults")
	for _, e := range entries {
		b, _ := defaults.ReadFile("defaults/" + e.Name())
		m[strings.TrimSuffix(e.Name(), templateSuffix)] = string(b)
	}
	return m
}

// Render replaces every '{{key}}' in t and trims trailing newlines.
func Render(t string, vars map[string]string) string {
	if len(vars) > 0 {
		pairs := make([]string, 0, len(vars)*2)
		for k, v := range vars {
			pairs = append(pairs, "{{"+k+"}}", v)
		}
		t = strings.NewReplacer(pairs...).Replace(t)
	}
	return strings.TrimRight(t, "\n")
}
