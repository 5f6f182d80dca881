package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage coursewatch configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := cfgFile
		if p == "" {
			p = config.DefaultConfigFile
		}
		if _, err := os.Stat(p); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", p)
		}
		if err := config.Save(config.Default(), p); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Wrote " + p))
		fmt.Println(dimStyle.Render("Fill in portal credentials and a notify method, or run 'coursewatch onboard'."))
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p) // #nosec G204 -- editor is from $EDITOR env var, intentional user-controlled binary
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd, configEditCmd)
}
