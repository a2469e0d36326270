package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/promptscript-lang/promptscript-go/internal/config"
	"github.com/promptscript-lang/promptscript-go/internal/registry"
	"github.com/promptscript-lang/promptscript-go/pkg/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <entry>",
	Short: "Resolve a PromptScript document",
	Long: `Resolve a PromptScript document into one flattened document.

Registries come from a configuration file (--config, or PRSC_CONFIG) or
from a bare local directory (--registry). Diagnostics go to stderr; the
flattened document goes to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	resolveCmd.Flags().String("registry", "", "Path to a local registry directory")
	resolveCmd.Flags().StringP("output", "o", "yaml", "Output format (yaml or json)")
	resolveCmd.Flags().Bool("no-cache", false, "Disable the result cache")

	if err := viper.BindPFlag("config", resolveCmd.Flags().Lookup("config")); err != nil {
		panic(fmt.Sprintf("failed to bind config flag: %v", err))
	}
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
}

func runResolve(cmd *cobra.Command, args []string) error {
	entry := args[0]
	reg, err := buildRegistry(cmd)
	if err != nil {
		return err
	}

	var opts []resolver.Option
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		opts = append(opts, resolver.WithCache(false))
	}
	r := resolver.New(reg, opts...)

	result, err := r.Resolve(cmd.Context(), entry)
	if err != nil {
		return err
	}

	for _, d := range result.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), d.String())
	}
	if result.AST == nil {
		return fmt.Errorf("failed to resolve %s", entry)
	}
	return writeResult(cmd, result)
}

func buildRegistry(cmd *cobra.Command) (registry.Registry, error) {
	configPath := viper.GetString("config")
	registryDir, err := cmd.Flags().GetString("registry")
	if err != nil {
		return nil, err
	}

	switch {
	case configPath != "":
		cfg, err := config.Load(config.WithConfigPath(configPath))
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return registry.NewFromConfig(cfg)
	case registryDir != "":
		return registry.NewFileSystemRegistry("local", registryDir, ""), nil
	default:
		return nil, fmt.Errorf("either --config or --registry is required")
	}
}

func writeResult(cmd *cobra.Command, result *resolver.Result) error {
	out := renderResult(result)
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	case "yaml":
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
	default:
		return fmt.Errorf("unsupported output format %q, want yaml or json", format)
	}
	return nil
}
