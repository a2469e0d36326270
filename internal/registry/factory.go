package registry

import (
	"fmt"

	"github.com/promptscript-lang/promptscript-go/internal/config"
)

// NewFromConfig builds the registry stack a configuration describes: a
// single registry directly, or an ordered composite when more than one
// is configured.
func NewFromConfig(cfg *config.Config) (Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registries := make([]Registry, 0, len(cfg.Registries))
	for _, regCfg := range cfg.Registries {
		reg, err := newRegistry(regCfg)
		if err != nil {
			return nil, fmt.Errorf("registry %s: %w", regCfg.Name, err)
		}
		registries = append(registries, reg)
	}

	if len(registries) == 1 {
		return registries[0], nil
	}
	return NewCompositeRegistry(registries...), nil
}

func newRegistry(regCfg config.RegistryConfig) (Registry, error) {
	switch {
	case regCfg.File != nil:
		return NewFileSystemRegistry(regCfg.Name, regCfg.File.Path, regCfg.File.Extension), nil
	case regCfg.Git != nil:
		return NewGitRegistry(regCfg.Git, regCfg.Name)
	case regCfg.HTTP != nil:
		return NewHTTPRegistry(regCfg.HTTP, regCfg.Name)
	default:
		return nil, fmt.Errorf("no source configured")
	}
}
