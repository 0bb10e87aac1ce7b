package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	root := buildRootCommand()
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "paraflow",
		Short: "Conversation-driven PARA organizer with a Notion backend",
		Long: strings.TrimSpace(`paraflow turns chat conversations into an organized PARA system.

Chat locally or through the HTTP gateway; paraflow extracts project, area,
resource and archive suggestions from the conversation, keeps them in a
per-user working set, and pushes confirmed elements into auto-provisioned
Notion databases.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newNotionCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.paraflow config and optionally a persona",
		Long:    "Create the default configuration file and optionally collect a persona profile used to seed the PARA framework.",
		Example: "  paraflow onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard()
		},
	}
}

func newChatCommand() *cobra.Command {
	var (
		message string
		user    string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat locally and review PARA suggestions as you go",
		Long:  "Run an interactive chat session. Each exchange re-extracts PARA suggestions; /confirm pushes an element to Notion, /reject discards it.",
		Example: strings.Join([]string{
			"  paraflow chat",
			"  paraflow chat --message \"I'm starting a blog redesign due next Friday\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(message, user)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message instead of interactive mode")
	cmd.Flags().StringVarP(&user, "user", "u", defaultUserID, "User ID for settings and working set")

	return cmd
}

func newGatewayCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the HTTP gateway (extraction, confirm/reject, provisioning)",
		Long:    "Start the HTTP API: PARA extraction, task extraction, confirm/reject, task pushes, framework provisioning, persona storage, and audio transcription.",
		Example: "  paraflow gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newNotionCommand() *cobra.Command {
	notionRoot := &cobra.Command{
		Use:   "notion",
		Short: "Connect a Notion workspace and provision PARA databases",
	}

	var (
		token  string
		pageID string
		user   string
	)

	connect := &cobra.Command{
		Use:     "connect",
		Short:   "Save a Notion integration token",
		Example: "  paraflow notion connect --token secret_abc123",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotionConnect(token, pageID, user)
		},
	}
	connect.Flags().StringVar(&token, "token", "", "Notion integration token")
	connect.Flags().StringVar(&pageID, "page", "", "Parent page ID for database creation (optional)")
	connect.Flags().StringVarP(&user, "user", "u", defaultUserID, "User ID to bind the token to")

	var provisionUser string
	provision := &cobra.Command{
		Use:     "provision",
		Short:   "Discover or create the four PARA databases",
		Long:    "Search the connected workspace for existing PARA databases; create and seed them from the saved persona when none exist. Safe to re-run.",
		Example: "  paraflow notion provision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotionProvision(provisionUser)
		},
	}
	provision.Flags().StringVarP(&provisionUser, "user", "u", defaultUserID, "User ID whose token and persona to use")

	notionRoot.AddCommand(connect)
	notionRoot.AddCommand(provision)
	return notionRoot
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, provider, and Notion readiness",
		Example: "  paraflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  paraflow version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
