// Package rootcmd wires the root cobra.Command for the casefile CLI binary.
package rootcmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	checkincmd "github.com/go-ports/casefile/cmd/casefile/checkin"
	clientcmd "github.com/go-ports/casefile/cmd/casefile/client"
	configcmd "github.com/go-ports/casefile/cmd/casefile/config"
	dashboardcmd "github.com/go-ports/casefile/cmd/casefile/dashboard"
	initcmd "github.com/go-ports/casefile/cmd/casefile/init"
	intakecmd "github.com/go-ports/casefile/cmd/casefile/intake"
	mcpcmd "github.com/go-ports/casefile/cmd/casefile/mcp"
	servecmd "github.com/go-ports/casefile/cmd/casefile/serve"
	setupcmd "github.com/go-ports/casefile/cmd/casefile/setup"
	"github.com/go-ports/casefile/cmd/casefile/shared"
	uninstallcmd "github.com/go-ports/casefile/cmd/casefile/uninstall"
	versioncmd "github.com/go-ports/casefile/cmd/casefile/version"
	"github.com/go-ports/casefile/internal/config"
	"github.com/go-ports/casefile/internal/logging"
	"github.com/go-ports/casefile/internal/service"
)

// New creates and returns the root cobra.Command for the casefile CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}

	root := &cobra.Command{
		Use:           "casefile",
		Short:         "casefile: client intake and case management",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(filepath.Join(ctx.HomeDir(), "config.yaml"))
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if ctx.LogLevel != "" {
				level = ctx.LogLevel
			}
			return logging.Setup(cmd.ErrOrStderr(), level, cfg.Log.Format)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(
		&ctx.Home, "home", "",
		"Override casefile home directory (default: $CASEFILE_HOME env → persisted config → ~/.casefile)",
	)
	f.StringVar(&ctx.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default from config.yaml)")
	f.StringVar(&ctx.Session, "session", service.DefaultSession, "Intake session id")

	root.AddCommand(
		initcmd.New(ctx).Cmd(),
		intakecmd.New(ctx).Cmd(),
		clientcmd.New(ctx).Cmd(),
		checkincmd.New(ctx).Cmd(),
		dashboardcmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
		servecmd.New(ctx).Cmd(),
		setupcmd.New(ctx).Cmd(),
		uninstallcmd.New(ctx).Cmd(),
		versioncmd.New(ctx).Cmd(),
	)

	return root
}
