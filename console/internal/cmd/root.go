package cmd

import (
	"github.com/spf13/cobra"

	"github.com/gsv-labs/gsv/console/internal/config"
)

var version = "dev"

// NewRootCmd creates the root cobra command for gsv-console. A bare
// invocation opens the chat console.
func NewRootCmd(v string) *cobra.Command {
	version = v

	root := &cobra.Command{
		Use:           "gsv-console",
		Short:         "Terminal chat client for a GSV gateway",
		Long:          "gsv-console connects to a GSV gateway over WebSocket and chats with its agents.",
		RunE:          runChat,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newChatCmd())
	root.AddCommand(newSessionsCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "path to config file (.json or .toml)")
	flags.String("url", "", "gateway WebSocket URL (overrides config and "+config.EnvURL+")")
	flags.String("token", "", "gateway bearer token")
	flags.StringP("session", "s", "", "session key to open")

	return root
}
