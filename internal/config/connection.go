package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paularlott/cli"
	cli_toml "github.com/paularlott/cli/toml"
)

// SaveSite stores the addresses and username of a site under its alias, passwords are never saved.
func SaveSite(site *SiteConfig, cmd *cli.Command) error {
	values := map[string]string{
		"portal_url":     site.PortalURL,
		"server_url":     site.ServerURL,
		"username":       site.Username,
		"token_endpoint": site.TokenEndpoint,
	}
	if site.AdminURL != "" && site.AdminURL != site.ServerURL {
		values["admin_url"] = site.AdminURL
	}
	if site.TokenURL != "" {
		values["token_url"] = site.TokenURL
	}

	if cmd.ConfigFile == nil || cmd.ConfigFile.FileUsed() == "" {
		// No config file so save this to the home folder
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}

		dir := filepath.Join(home, ".config", CONFIG_DIR)
		newCfg := cli_toml.NewConfigFile(cli.StrToPtr(filepath.Join(dir, CONFIG_FILE)), nil)
		for key, value := range values {
			newCfg.SetValue("site."+site.Alias+"."+key, value)
		}

		// Create any missing directories
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		if err := newCfg.Save(); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	} else {
		for key, value := range values {
			cmd.ConfigFile.SetValue("site."+site.Alias+"."+key, value)
		}

		if err := cmd.ConfigFile.Save(); err != nil {
			return fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return nil
}
