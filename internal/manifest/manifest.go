// Package manifest loads the world deployment manifest and resolves
// contract tags to addresses.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
)

//go:embed schema.cue
var schemaSource string

// Manifest is a validated deployment manifest.
type Manifest struct {
	World     World      `json:"world"`
	Contracts []Contract `json:"contracts"`
	Models    []Model    `json:"models,omitempty"`
}

// World is the world contract entry.
type World struct {
	Address   string `json:"address"`
	ClassHash string `json:"class_hash,omitempty"`
	Seed      string `json:"seed,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Contract is a deployed system contract.
type Contract struct {
	Tag       string   `json:"tag"`
	Address   string   `json:"address"`
	ClassHash string   `json:"class_hash,omitempty"`
	Selector  string   `json:"selector,omitempty"`
	Systems   []string `json:"systems,omitempty"`
}

// Model is a registered model (component).
type Model struct {
	Tag       string   `json:"tag"`
	ClassHash string   `json:"class_hash,omitempty"`
	Selector  string   `json:"selector,omitempty"`
	Members   []Member `json:"members,omitempty"`
}

// Member is a model field.
type Member struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Key  bool   `json:"key"`
}

// Error is a schema violation with its position in the manifest.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return Parse(data, path)
}

// Parse validates data against the manifest schema and decodes it.
// filename is used in error positions.
func Parse(data []byte, filename string) (*Manifest, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("manifest schema: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var m Manifest
	if err := v.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	m.normalize()

	seen := make(map[string]bool, len(m.Contracts))
	for _, c := range m.Contracts {
		if seen[c.Tag] {
			return nil, &Error{Message: fmt.Sprintf("duplicate contract tag %q", c.Tag)}
		}
		seen[c.Tag] = true
	}
	return &m, nil
}

func (m *Manifest) normalize() {
	m.World.Address = ir.NormalizeFelt(m.World.Address)
	for i := range m.Contracts {
		m.Contracts[i].Address = ir.NormalizeFelt(m.Contracts[i].Address)
	}
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	e := &Error{Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		e.Pos = pos[0]
	}
	return e
}

// ContractAddress returns the address of the contract with tag.
func (m *Manifest) ContractAddress(tag string) (string, error) {
	for _, c := range m.Contracts {
		if c.Tag == tag {
			return c.Address, nil
		}
	}
	return "", fmt.Errorf("manifest: no contract tagged %q", tag)
}

// Contract returns the contract with tag.
func (m *Manifest) Contract(tag string) (Contract, bool) {
	for _, c := range m.Contracts {
		if c.Tag == tag {
			return c, true
		}
	}
	return Contract{}, false
}

// ModelTags returns the tags of models in namespace, sorted.
// An empty namespace returns all.
func (m *Manifest) ModelTags(namespace string) []string {
	var tags []string
	for _, md := range m.Models {
		ns, _, ok := model.SplitTag(md.Tag)
		if namespace == "" || (ok && ns == namespace) {
			tags = append(tags, md.Tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// KeyMembers returns the key member names of the model with tag, in order.
func (m *Manifest) KeyMembers(tag string) []string {
	for _, md := range m.Models {
		if md.Tag != tag {
			continue
		}
		var keys []string
		for _, mem := range md.Members {
			if mem.Key {
				keys = append(keys, mem.Name)
			}
		}
		return keys
	}
	return nil
}
