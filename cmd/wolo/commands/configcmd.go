package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wolo-ai/wolo/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

func init() {
	configCmd.AddCommand(
		configInitCmd,
		configShowCmd,
		configListEndpointsCmd,
		configExampleCmd,
		configDocsCmd,
	)
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, created, err := config.Init()
		if err != nil {
			return exitWith(ExitConfig, err)
		}
		if created {
			fmt.Println("created", path)
		} else {
			fmt.Println("already exists:", path)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return exitWith(ExitConfig, err)
		}
		// Effective config includes secrets resolved from the
		// environment, so keys are masked on the way out.
		for i := range cfg.Endpoints {
			if cfg.Endpoints[i].APIKey != "" {
				cfg.Endpoints[i].APIKey = mask(cfg.Endpoints[i].APIKey)
			}
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	},
}

var configListEndpointsCmd = &cobra.Command{
	Use:   "list-endpoints",
	Short: "List configured endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return exitWith(ExitConfig, err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMODEL\tBASE URL\tCONTEXT")
		for _, ep := range cfg.Endpoints {
			name := ep.Name
			if name == cfg.DefaultEndpoint {
				name += " (default)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", name, ep.Model, ep.BaseURL, ep.ContextWindow)
		}
		return w.Flush()
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print a commented example configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.Example())
	},
}

var configDocsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Describe config files and environment variables",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf(`Configuration is read from %s/config.yaml
(or config.jsonc). Values of the form {env:NAME} are replaced with the
named environment variable. Environment overrides applied last:

  WOLO_API_KEY         API key for the active endpoint
  WOLO_MODEL           Model name
  WOLO_API_BASE        Endpoint base URL
  WOLO_TEMPERATURE     Sampling temperature
  WOLO_MAX_TOKENS      Completion token limit
  WOLO_CONTEXT_WINDOW  Context window size in tokens
  WOLO_MCP_SERVERS     JSON map of MCP server definitions
  WOLO_ENABLE_THINK    Request reasoning content (true/false)
  WOLO_CONFIG_DIR      Override the config directory
  WOLO_LOG_LEVEL       trace|debug|info|warn|error

Invalid override values are ignored with a debug log line.
`, config.Dir())
	},
}

func mask(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}
