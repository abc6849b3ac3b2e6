package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yerzhan01/assistant24-sub001/pkg/assistant/config"
)

// newSetupCmd creates the `assistant setup` command for storing the LLM
// API key in the OS keyring.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Store the LLM API key in the OS keyring",
		Long: `Prompt for the LLM API key and save it in the operating
system keyring (Secret Service on Linux, Keychain on macOS, Credential
Manager on Windows). The key never touches config.yaml.`,
		RunE: runSetup,
	}
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	if !config.KeyringAvailable() {
		return fmt.Errorf("OS keyring is not available; set ASSISTANT_API_KEY in the environment instead")
	}

	key, err := config.ReadSecret("LLM API key: ")
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("empty API key")
	}

	if err := config.StoreAPIKey(key, logger); err != nil {
		return err
	}
	fmt.Println("API key saved. Run: assistant serve")
	return nil
}
