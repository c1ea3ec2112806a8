/*
Package main is the matchUp command line client.

It keeps the login session in a local SQLite file so consecutive invocations act like
one app session: log in once, then list courts, join them and chat in their rooms.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"matchup/internal/app/auth"
	"matchup/internal/app/kvstore"
	"matchup/internal/app/matchup"
	"matchup/internal/configs"
	"matchup/internal/pkg/logx"
)

// command is one subcommand. run receives the arguments after the command name.
type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"login", "login <email-or-username> [--password P]", "log in and sync your courts", runLogin},
	{"signup", "signup --name N --email E [--nick K] [--password P]", "create an account", runSignup},
	{"profile", "profile", "show the logged in profile", runProfile},
	{"update-profile", "update-profile [--name N] [--nick K] [--email E]", "change profile fields", runUpdateProfile},
	{"logout", "logout", "forget the local session", runLogout},
	{"locations", "locations", "list every court", runLocations},
	{"sync", "sync", "refresh joined courts from the server", runSync},
	{"chats", "chats", "list the chats of joined courts", runChats},
	{"join", "join <location-id>", "join a court", runJoin},
	{"chat", "chat [location-id]", "chat in a court room, or the lobby", runChat},
}

// env is what every command works with.
type env struct {
	app    *matchup.App
	stdin  io.Reader
	stdout io.Writer
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if auth.IsAuthError(err) {
			fmt.Fprintln(os.Stderr, "hint: run `matchup login` to start a new session")
		}
		os.Exit(1)
	}
}

func run(argv []string) error {
	var verbose bool

	flagSet := pflag.NewFlagSet("matchup", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	args := flagSet.Args()
	if help, _ := flagSet.GetBool("help"); help || len(args) == 0 {
		printHelp(flagSet)
		return nil
	}

	cmd, ok := lookup(args[0])
	if !ok {
		printHelp(flagSet)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logx.InitGlobalLoggerTo(os.Stderr, cfg.IsDevelopment())
	if !verbose {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := kvstore.OpenSQLite(cfg.SessionStorePath)
	if err != nil {
		return err
	}
	defer kv.Close()

	app, err := matchup.New(ctx, cfg, kv, nil)
	if err != nil {
		return err
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	go app.Run(loopCtx)
	defer func() {
		cancelLoop()
		<-app.Loop.Done()
	}()

	return cmd.run(ctx, &env{app: app, stdin: os.Stdin, stdout: os.Stdout}, args[1:])
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "matchup: find pickup basketball runs and chat with the players.\n\n")
	fmt.Fprintf(os.Stderr, "Usage: matchup [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-52s %s\n", c.usage, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n%s", flagSet.FlagUsages())
	fmt.Fprintf(os.Stderr, "\nConfiguration is read from environment variables (API_BASE_URL, WS_URL,\nSESSION_STORE_PATH, ...) or the YAML file named by MATCHUP_CONFIG.\n")
}
