// Command cli manages stored add-on configurations and builds manifest URLs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"aiostreams/internal/userconfig"
	"aiostreams/pkg/models"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL   string
		tokenPath string
	)

	root := &cobra.Command{
		Use:           "aiostreams",
		Short:         "Manage AIOStreams configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "api", defaultBaseURL, "API base URL")
	root.PersistentFlags().StringVar(&tokenPath, "token", defaultTokenPath(), "token file path")

	cl := func() *client { return newClient(baseURL, tokenPath) }
	root.AddCommand(newUserCmd(cl), newManifestCmd(cl))
	return root
}

func readConfigFile(path string) (models.UserData, error) {
	var data models.UserData
	if path == "" {
		return data, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return data, fmt.Errorf("decode config: %w", err)
	}
	return data, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func newUserCmd(cl func() *client) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Create and manage a stored configuration"}

	var createPassword, createConfig string
	create := &cobra.Command{
		Use:   "create",
		Short: "Store a configuration and log in as its owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if createPassword == "" {
				return errors.New("--password is required")
			}
			cfg, err := readConfigFile(createConfig)
			if err != nil {
				return err
			}

			c := cl()
			var resp authResponse
			payload := map[string]any{"password": createPassword, "config": cfg}
			if err := c.doJSON(cmd.Context(), http.MethodPost, "/api/v1/user", "", payload, &resp); err != nil {
				return err
			}
			if err := saveToken(c.tokenPath, tokenData{UUID: resp.UUID, Token: resp.Token}); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "uuid:", resp.UUID)
			fmt.Fprintln(cmd.OutOrStdout(), "manifest:", storedManifestURL(c.baseURL, resp.UUID, createPassword))
			return nil
		},
	}
	create.Flags().StringVar(&createPassword, "password", "", "password protecting the configuration")
	create.Flags().StringVar(&createConfig, "config", "", "JSON configuration file")

	var loginUUID, loginPassword string
	login := &cobra.Command{
		Use:   "login",
		Short: "Log in to a stored configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loginUUID == "" || loginPassword == "" {
				return errors.New("--uuid and --password are required")
			}
			c := cl()
			var resp authResponse
			payload := map[string]string{"uuid": loginUUID, "password": loginPassword}
			if err := c.doJSON(cmd.Context(), http.MethodPost, "/api/v1/user/login", "", payload, &resp); err != nil {
				return err
			}
			if err := saveToken(c.tokenPath, tokenData{UUID: loginUUID, Token: resp.Token}); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged in")
			return nil
		},
	}
	login.Flags().StringVar(&loginUUID, "uuid", "", "configuration uuid")
	login.Flags().StringVar(&loginPassword, "password", "", "password")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cl()
			td, err := readToken(c.tokenPath)
			if err != nil {
				return err
			}
			var resp map[string]any
			if err := c.doJSON(cmd.Context(), http.MethodGet, "/api/v1/user", td.Token, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}

	var updateConfig string
	update := &cobra.Command{
		Use:   "update",
		Short: "Replace the stored configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if updateConfig == "" {
				return errors.New("--config is required")
			}
			cfg, err := readConfigFile(updateConfig)
			if err != nil {
				return err
			}
			c := cl()
			td, err := readToken(c.tokenPath)
			if err != nil {
				return err
			}
			payload := map[string]any{"config": cfg}
			if err := c.doJSON(cmd.Context(), http.MethodPut, "/api/v1/user", td.Token, payload, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config updated")
			return nil
		},
	}
	update.Flags().StringVar(&updateConfig, "config", "", "JSON configuration file")

	remove := &cobra.Command{
		Use:   "delete",
		Short: "Delete the stored configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cl()
			td, err := readToken(c.tokenPath)
			if err != nil {
				return err
			}
			if err := c.doJSON(cmd.Context(), http.MethodDelete, "/api/v1/user", td.Token, nil, nil); err != nil {
				return err
			}
			if err := clearToken(c.tokenPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "user deleted")
			return nil
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := clearToken(cl().tokenPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}

	cmd.AddCommand(create, login, show, update, remove, logout)
	return cmd
}

func newManifestCmd(cl func() *client) *cobra.Command {
	cmd := &cobra.Command{Use: "manifest", Short: "Build or fetch manifest URLs"}

	var (
		configPath string
		id         string
		password   string
	)
	target := func(baseURL string) (string, error) {
		switch {
		case configPath != "":
			cfg, err := readConfigFile(configPath)
			if err != nil {
				return "", err
			}
			return inlineManifestURL(baseURL, cfg)
		case id != "" && password != "":
			return storedManifestURL(baseURL, id, password), nil
		case id == "" && password == "":
			return baseURL + "/stremio/manifest.json", nil
		default:
			return "", errors.New("--uuid and --password go together")
		}
	}
	addFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&configPath, "config", "", "JSON configuration file to inline")
		c.Flags().StringVar(&id, "uuid", "", "stored configuration uuid")
		c.Flags().StringVar(&password, "password", "", "stored configuration password")
	}

	urlCmd := &cobra.Command{
		Use:   "url",
		Short: "Print the manifest URL to install in Stremio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := target(cl().baseURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
	addFlags(urlCmd)

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and print the manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cl()
			u, err := target("")
			if err != nil {
				return err
			}
			var m models.Manifest
			if err := c.doJSON(cmd.Context(), http.MethodGet, u, "", nil, &m); err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}
	addFlags(fetch)

	cmd.AddCommand(urlCmd, fetch)
	return cmd
}

func inlineManifestURL(baseURL string, cfg models.UserData) (string, error) {
	enc, err := userconfig.EncodeInline(cfg)
	if err != nil {
		return "", err
	}
	return baseURL + "/stremio/" + enc + "/manifest.json", nil
}

func storedManifestURL(baseURL, id, password string) string {
	return baseURL + "/stremio/" + url.PathEscape(id) + "/" + url.PathEscape(password) + "/manifest.json"
}
