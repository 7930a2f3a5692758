package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/agenticgokit/traceval/internal/utils"
)

const header = `# traceval configuration
# Every key can be overridden with TRACEVAL_<SECTION>_<KEY>, e.g.
# TRACEVAL_JUDGE_MODEL=gpt-4o.

`

// Generator writes configuration files.
type Generator struct{}

// NewGenerator creates a new config generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Render encodes cfg as TOML with a leading comment block.
func (g *Generator) Render(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateConfig writes cfg to outputPath. Existing files are kept unless
// force is set.
func (g *Generator) GenerateConfig(cfg Config, outputPath string, force bool) error {
	if utils.FileExists(outputPath) && !force {
		return utils.NewUserError(
			fmt.Sprintf("Config file %s already exists", outputPath),
			"Re-run with --force to overwrite it",
			nil)
	}

	content, err := g.Render(cfg)
	if err != nil {
		return err
	}
	if err := utils.WriteFile(outputPath, content); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
