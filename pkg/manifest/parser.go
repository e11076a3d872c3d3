package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Well-known manifest file names, probed in order by Discover.
var manifestNames = []string{"stackreset.cue", "stackreset.yaml", "stackreset.yml"}

// Parser loads manifests from disk.
type Parser struct {
	ctx       *cue.Context
	validator *validator.Validate
}

// NewParser creates a manifest parser.
func NewParser() *Parser {
	return &Parser{
		ctx:       cuecontext.New(),
		validator: validator.New(),
	}
}

// Discover returns the path of the first well-known manifest file in
// dir, or "" when none exists.
func Discover(dir string) string {
	for _, name := range manifestNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Load reads, decodes, and validates the manifest at path. The format
// is chosen by extension: .cue manifests are unified with the embedded
// schema, .yaml/.yml manifests are decoded directly.
func (p *Parser) Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	switch filepath.Ext(abs) {
	case ".cue":
		if err := p.decodeCUE(data, abs, &m); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", abs, err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", filepath.Ext(abs))
	}

	m.BaseDir = filepath.Dir(abs)

	if err := p.validator.Struct(&m); err != nil {
		return nil, fmt.Errorf("manifest %s failed validation: %w", abs, err)
	}
	return &m, nil
}

// decodeCUE compiles the manifest, unifies it with the schema, and
// decodes the result.
func (p *Parser) decodeCUE(data []byte, path string, m *Manifest) error {
	schema := p.ctx.CompileString(manifestSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal manifest schema error: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	val := p.ctx.CompileBytes(data, cue.Filename(path))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("manifest %s does not satisfy schema: %w", path, err)
	}

	if err := unified.Decode(m); err != nil {
		return fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return nil
}
