package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/stackup/cmd/stackup/commands"
	"github.com/slok/stackup/internal/log"
	loglogrus "github.com/slok/stackup/internal/log/logrus"
)

// Version is set at build time with ldflags.
var Version = "dev"

// Run runs the stackup CLI with the given arguments and standard streams.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	app := kingpin.New("stackup", "Provision a server stack from a plan of shell steps.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	cmds := map[string]commands.Command{}
	for _, cmd := range []commands.Command{
		commands.NewRunCommand(rootCmd, app),
		commands.NewPlanCommand(rootCmd, app),
		commands.NewHistoryCommand(rootCmd, app),
		commands.NewStopCommand(rootCmd, app),
		commands.NewDoctorCommand(rootCmd, app),
	} {
		cmds[cmd.Name()] = cmd
	}

	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Commands printing tables or JSON stay quiet unless debugging.
	if quietCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}
	rootCmd.Logger = newLogger(*rootCmd)

	var g run.Group

	// Termination signals.
	{
		signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Signal received, stopping")
				return nil
			},
			func(_ error) {
				stop()
			},
		)
	}

	// Selected command.
	{
		cmdCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				if err := cmds[cmdName].Run(cmdCtx); err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

var quietCommands = map[string]bool{
	"plan":    true,
	"history": true,
	"doctor":  true,
}

// newLogger returns the logrus backed logger, or a noop one when logs are disabled.
func newLogger(config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	l := logrus.New()
	l.Out = config.Stderr
	if config.Debug {
		l.SetLevel(logrus.DebugLevel)
	}

	switch config.LoggerType {
	case commands.LoggerTypeJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	}

	logger := loglogrus.NewLogrus(logrus.NewEntry(l)).WithValues(log.Kv{"version": Version})
	logger.Debugf("Debug level is enabled")

	return logger
}

func main() {
	if err := Run(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
