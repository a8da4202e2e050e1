package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage named settings presets",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := configManager()
		if err != nil {
			return err
		}
		names := cfg.PresetNames()
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no presets saved")
			return nil
		}
		sort.Strings(names)
		for _, name := range names {
			preset, _ := cfg.Preset(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, preset.OutputTemplate)
		}
		return nil
	},
}

var presetsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a preset as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configManager()
		if err != nil {
			return err
		}
		preset, ok := cfg.Preset(args[0])
		if !ok {
			return fmt.Errorf("unknown preset %q", args[0])
		}
		data, err := json.MarshalIndent(preset, "", "    ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var presetsSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current settings as a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configManager()
		if err != nil {
			return err
		}
		if err := cfg.SavePreset(args[0], cfg.Settings()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "preset %q saved\n", args[0])
		return nil
	},
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configManager()
		if err != nil {
			return err
		}
		if err := cfg.DeletePreset(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "preset %q deleted\n", args[0])
		return nil
	},
}

var presetsApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Replace the live settings with a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configManager()
		if err != nil {
			return err
		}
		if err := cfg.ApplyPreset(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "preset %q applied\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsListCmd, presetsShowCmd, presetsSaveCmd,
		presetsDeleteCmd, presetsApplyCmd)
}
