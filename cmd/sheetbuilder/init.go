package main

import (
	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/config"
	"github.com/sheetbuilder/sheetbuilder/internal/home"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the sheetbuilder home directory and a default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if h.ConfigExists() {
			cmd.Printf("Config already exists at %s\n", h.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		cmd.Printf("Wrote default config to %s\n", h.ConfigPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
