package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/mendeley/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

// ConfigResponse is the response for the config command.
type ConfigResponse struct {
	Path            string              `json:"path"`
	CredentialsPath string              `json:"credentials_path"`
	LibraryPath     string              `json:"library_path"`
	DBPath          string              `json:"db_path"`
	Config          config.GlobalConfig `json:"config"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after environment overrides and defaults.
Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		resp := ConfigResponse{
			Path:            config.GlobalConfigPath(),
			CredentialsPath: config.CredentialsPath(cfg.DataDir, cfg.User),
			LibraryPath:     config.LibraryPath(cfg.DataDir),
			DBPath:          config.DBPath(cfg.DataDir),
			Config:          cfg.Redacted(),
		}

		if humanOutput {
			r := resp.Config
			outputHuman("config:       %s\n", resp.Path)
			outputHuman("user:         %s\n", r.User)
			outputHuman("client_id:    %s\n", r.ClientID)
			outputHuman("secret:       %s\n", r.ClientSecret)
			outputHuman("public:       %t\n", r.Public)
			outputHuman("base_url:     %s\n", r.BaseURL)
			outputHuman("redirect_uri: %s\n", r.RedirectURI)
			outputHuman("data_dir:     %s\n", r.DataDir)
			outputHuman("credentials:  %s\n", resp.CredentialsPath)
			outputHuman("library:      %s\n", resp.LibraryPath)
			return nil
		}
		return outputJSON(resp)
	},
}
