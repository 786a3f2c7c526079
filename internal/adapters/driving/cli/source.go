package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage document sources",
	Long:  `Add, list, edit, or remove document sources and view their activity logs.`,
}

var sourceAddCmd = &cobra.Command{
	Use:   "add [backend-type]",
	Short: "Add a new source",
	Long: `Adds a new source of the given backend type. Configuration fields
are prompted interactively; secret fields are read without echo.

Run without arguments to list the available backend types.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSourceAdd,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	RunE:  runSourceList,
}

var sourceShowCmd = &cobra.Command{
	Use:   "show [source-id]",
	Short: "Show source configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceShow,
}

var sourceEditCmd = &cobra.Command{
	Use:   "edit [source-id]",
	Short: "Edit a source",
	Long: `Updates a source's label, enabled state, or configuration fields.
Only the provided flags change; everything else is preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: runSourceEdit,
}

var sourceRemoveCmd = &cobra.Command{
	Use:     "remove [source-id]",
	Aliases: []string{"rm"},
	Short:   "Remove a source",
	Args:    cobra.ExactArgs(1),
	RunE:    runSourceRemove,
}

var sourceLogCmd = &cobra.Command{
	Use:   "log [source-id]",
	Short: "Show source activity log",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceLog,
}

var (
	sourceLabel    string
	sourceDisabled bool
	sourceEnabled  bool
	sourceConfigs  []string
	sourceLogLimit int
)

func init() {
	sourceAddCmd.Flags().StringVarP(&sourceLabel, "label", "l", "", "Human-readable source label")
	sourceAddCmd.Flags().StringArrayVarP(&sourceConfigs, "config", "c", nil,
		"Configuration field as key=value (repeatable, skips the prompt)")

	sourceEditCmd.Flags().StringVarP(&sourceLabel, "label", "l", "", "New source label")
	sourceEditCmd.Flags().BoolVar(&sourceEnabled, "enable", false, "Enable the source")
	sourceEditCmd.Flags().BoolVar(&sourceDisabled, "disable", false, "Disable the source")
	sourceEditCmd.Flags().StringArrayVarP(&sourceConfigs, "config", "c", nil,
		"Configuration field as key=value (repeatable)")

	sourceLogCmd.Flags().IntVarP(&sourceLogLimit, "limit", "n", 20, "Maximum entries to show")

	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceShowCmd)
	sourceCmd.AddCommand(sourceEditCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
	sourceCmd.AddCommand(sourceLogCmd)
	rootCmd.AddCommand(sourceCmd)
}

func runSourceAdd(cmd *cobra.Command, args []string) error {
	if sourceService == nil || backendRegistry == nil {
		return errors.New("source service not configured")
	}

	if len(args) == 0 {
		cmd.Println("Available backend types:")
		for _, t := range backendRegistry.List() {
			kind := "periodic"
			if t.Interactive {
				kind = "interactive"
			}
			cmd.Printf("  %-12s %s (%s)\n", t.ID, t.Description, kind)
		}
		return nil
	}

	backendID := args[0]
	backendType, err := backendRegistry.Get(backendID)
	if err != nil {
		return fmt.Errorf("unknown backend type %q", backendID)
	}

	config, err := parseConfigFlags(sourceConfigs)
	if err != nil {
		return err
	}
	if len(sourceConfigs) == 0 {
		config = promptConfig(cmd, backendType.ConfigKeys)
	}

	label := sourceLabel
	if label == "" {
		label = backendType.Name
	}

	source := domain.Source{
		Type:    backendID,
		Label:   label,
		Enabled: true,
		Config:  config,
	}
	created, err := sourceService.Add(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("failed to add source: %w", err)
	}

	cmd.Printf("Added %s source: %s\n", backendID, created.Label)
	cmd.Printf("  ID: %s\n", created.ID)
	return nil
}

func runSourceList(cmd *cobra.Command, _ []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}

	sources, err := sourceService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if len(sources) == 0 {
		cmd.Println("No sources configured. Add one with: intake source add")
		return nil
	}

	for i := range sources {
		state := "enabled"
		if !sources[i].Enabled {
			state = "disabled"
		}
		cmd.Printf("  %s\n", sources[i].ID)
		cmd.Printf("    Label:   %s\n", sources[i].Label)
		cmd.Printf("    Type:    %s\n", sources[i].Type)
		cmd.Printf("    State:   %s\n", state)
		cmd.Println()
	}

	cmd.Printf("Total: %d sources\n", len(sources))
	return nil
}

func runSourceShow(cmd *cobra.Command, args []string) error {
	if sourceService == nil || backendRegistry == nil {
		return errors.New("source service not configured")
	}

	source, err := sourceService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get source: %w", err)
	}

	cmd.Printf("Source: %s\n\n", source.ID)
	cmd.Printf("  Label:    %s\n", source.Label)
	cmd.Printf("  Type:     %s\n", source.Type)
	cmd.Printf("  Enabled:  %t\n", source.Enabled)
	cmd.Printf("  Created:  %s\n", source.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", source.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(source.Config) > 0 {
		cmd.Println("\n  Config:")
		secrets := secretKeys(source.Type)
		for key, value := range source.Config {
			if secrets[key] {
				value = "****"
			}
			cmd.Printf("    %s: %s\n", key, value)
		}
	}

	return nil
}

func runSourceEdit(cmd *cobra.Command, args []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}
	if sourceEnabled && sourceDisabled {
		return errors.New("--enable and --disable are mutually exclusive")
	}

	ctx := cmd.Context()
	source, err := sourceService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get source: %w", err)
	}

	if sourceLabel != "" {
		source.Label = sourceLabel
	}
	if sourceEnabled {
		source.Enabled = true
	}
	if sourceDisabled {
		source.Enabled = false
	}

	overrides, err := parseConfigFlags(sourceConfigs)
	if err != nil {
		return err
	}
	for key, value := range overrides {
		source.Config[key] = value
	}

	if err := sourceService.Update(ctx, *source); err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	cmd.Printf("Updated source: %s\n", source.ID)
	return nil
}

func runSourceRemove(cmd *cobra.Command, args []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}

	if err := sourceService.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}

	cmd.Printf("Removed source: %s\n", args[0])
	return nil
}

func runSourceLog(cmd *cobra.Command, args []string) error {
	if sourceService == nil {
		return errors.New("source service not configured")
	}

	entries, err := sourceService.Log(cmd.Context(), args[0], sourceLogLimit)
	if err != nil {
		return fmt.Errorf("failed to get source log: %w", err)
	}

	if len(entries) == 0 {
		cmd.Println("No log entries.")
		return nil
	}

	for _, entry := range entries {
		cmd.Printf("%s  %s\n", entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Message)
	}
	return nil
}

// parseConfigFlags decodes repeated key=value config flags.
func parseConfigFlags(flags []string) (map[string]string, error) {
	config := map[string]string{}
	for _, flag := range flags {
		key, value, ok := strings.Cut(flag, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid config flag %q, expected key=value", flag)
		}
		config[key] = value
	}
	return config, nil
}

// promptConfig interactively collects configuration fields, reading
// secret fields without echo.
func promptConfig(cmd *cobra.Command, keys []domain.ConfigKey) map[string]string {
	config := map[string]string{}
	reader := bufio.NewReader(os.Stdin)

	for _, key := range keys {
		label := key.Label
		if key.Default != "" {
			label = fmt.Sprintf("%s [%s]", label, key.Default)
		}
		cmd.Printf("%s: ", label)

		var value string
		if key.Secret {
			value = readSecret()
			cmd.Println()
		} else {
			input, _ := reader.ReadString('\n') //nolint:errcheck
			value = strings.TrimSpace(input)
		}

		if value == "" {
			value = key.Default
		}
		if value != "" {
			config[key.Key] = value
		}
	}
	return config
}

//nolint:errcheck // CLI helper, error ignored for UX
func readSecret() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(secret)
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// secretKeys returns the secret config key names for a backend type.
func secretKeys(backendID string) map[string]bool {
	secrets := map[string]bool{}
	if backendRegistry == nil {
		return secrets
	}
	backendType, err := backendRegistry.Get(backendID)
	if err != nil {
		return secrets
	}
	for _, key := range backendType.ConfigKeys {
		if key.Secret {
			secrets[key.Key] = true
		}
	}
	return secrets
}
