package main

import (
	"fmt"

	"github.com/autom8ter/docpipe"
	"github.com/autom8ter/docpipe/util"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	var (
		configPath string
		envPath    string
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := docpipe.LoadConfig(configPath, envPath)
			if err != nil {
				return err
			}
			bits, err := util.JSONToYAML([]byte(util.JSONString(cfg)))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(bits))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a yaml or json config file")
	cmd.Flags().StringVarP(&envPath, "env-file", "e", ".env", "path to a .env file loaded when it exists")
	return cmd
}
