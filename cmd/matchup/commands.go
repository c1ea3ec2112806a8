package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"matchup/internal/app/auth"
	"matchup/internal/app/membership"
	"matchup/internal/app/model"
	"matchup/internal/app/realtime"
	"matchup/internal/app/session"
	"matchup/internal/pkg/randx"
)

// await starts an Async call and blocks until its completion has run on the loop.
func await[T any](ctx context.Context, start func(done func(T, error))) (T, error) {
	type result struct {
		value T
		err   error
	}

	ch := make(chan result, 1)
	start(func(v T, err error) { ch <- result{v, err} })

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func awaitErr(ctx context.Context, start func(done func(error))) error {
	_, err := await(ctx, func(done func(struct{}, error)) {
		start(func(err error) { done(struct{}{}, err) })
	})
	return err
}

func parseFlags(name string, args []string, define func(fs *pflag.FlagSet)) ([]string, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if define != nil {
		define(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

func readLine(r io.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(ctx context.Context, e *env, args []string) error {
	var password string
	rest, err := parseFlags("login", args, func(fs *pflag.FlagSet) {
		fs.StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	})
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("usage: matchup login <email-or-username> [--password P]")
	}

	if password == "" {
		if password, err = readLine(e.stdin, e.stdout, "Password: "); err != nil {
			return err
		}
	}

	snap, err := await(ctx, func(done func(session.Snapshot, error)) {
		e.app.LoginAsync(ctx, rest[0], password, done)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "Logged in as %s (%s). Joined courts: %d.\n",
		snap.Identity.UserName, snap.Identity.Email, len(snap.JoinedLocationIDs))
	return nil
}

func runSignup(ctx context.Context, e *env, args []string) error {
	var name, nick, email, password string
	if _, err := parseFlags("signup", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&name, "name", "", "user name (also a login identifier)")
		fs.StringVar(&nick, "nick", "", "display name (random when omitted)")
		fs.StringVar(&email, "email", "", "email address")
		fs.StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	}); err != nil {
		return err
	}
	if name == "" || email == "" {
		return errors.New("usage: matchup signup --name N --email E [--nick K] [--password P]")
	}

	var err error
	if nick == "" {
		if nick, err = randx.UserNickname(); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = readLine(e.stdin, e.stdout, "Password: "); err != nil {
			return err
		}
	}

	if err := awaitErr(ctx, func(done func(error)) {
		e.app.CreateAccountAsync(ctx, name, nick, email, password, done)
	}); err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "Account created for %s (%s). Run `matchup login %s` to start.\n", name, nick, email)
	return nil
}

func runProfile(ctx context.Context, e *env, _ []string) error {
	profile, err := await(ctx, func(done func(auth.Profile, error)) {
		e.app.GetProfileAsync(ctx, done)
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "User id\t%d\n", profile.UserID)
	fmt.Fprintf(tw, "User name\t%s\n", profile.UserName)
	fmt.Fprintf(tw, "Nickname\t%s\n", profile.UserNickName)
	fmt.Fprintf(tw, "Email\t%s\n", profile.Email)
	return tw.Flush()
}

func runUpdateProfile(ctx context.Context, e *env, args []string) error {
	current := e.app.Session.Snapshot().Identity

	name, nick, email := current.UserName, current.UserNickName, current.Email
	if _, err := parseFlags("update-profile", args, func(fs *pflag.FlagSet) {
		fs.StringVar(&name, "name", name, "new user name")
		fs.StringVar(&nick, "nick", nick, "new display name")
		fs.StringVar(&email, "email", email, "new email address")
	}); err != nil {
		return err
	}

	if err := awaitErr(ctx, func(done func(error)) {
		e.app.UpdateProfileAsync(ctx, current.UserID, name, nick, email, done)
	}); err != nil {
		return err
	}

	fmt.Fprintln(e.stdout, "Profile updated.")
	return nil
}

func runLogout(ctx context.Context, e *env, _ []string) error {
	if err := awaitErr(ctx, func(done func(error)) { e.app.LogoutAsync(ctx, done) }); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Logged out.")
	return nil
}

func runLocations(ctx context.Context, e *env, _ []string) error {
	locations, err := await(ctx, func(done func([]model.Location, error)) {
		e.app.LocationsAsync(ctx, done)
	})
	if err != nil {
		return err
	}

	joined := e.app.Session.Snapshot().JoinedLocationIDs

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tZIP\tPLAYERS\tJOINED")
	for _, l := range locations {
		mark := ""
		if slices.Contains(joined, l.LocationID) {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", l.LocationID, l.LocationName, l.Address, l.ZipCode, l.ActivePlayerCount, mark)
	}
	return tw.Flush()
}

func runSync(ctx context.Context, e *env, _ []string) error {
	chats, err := await(ctx, func(done func([]membership.Chat, error)) {
		e.app.SyncAsync(ctx, done)
	})
	if err != nil {
		return err
	}
	return printChats(e.stdout, chats)
}

// runChats lists the chats of the locally stored memberships without asking the server
// which courts were joined.
func runChats(ctx context.Context, e *env, _ []string) error {
	if _, err := await(ctx, func(done func([]model.Location, error)) {
		e.app.LocationsAsync(ctx, done)
	}); err != nil {
		return err
	}
	return printChats(e.stdout, e.app.Membership.Chats())
}

func runJoin(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: matchup join <location-id>")
	}
	locationID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid location id %q", args[0])
	}

	chats, err := await(ctx, func(done func([]membership.Chat, error)) {
		e.app.JoinAsync(ctx, locationID, done)
	})
	if err != nil {
		return err
	}
	return printChats(e.stdout, chats)
}

func runChat(ctx context.Context, e *env, args []string) error {
	var ch *realtime.Channel
	room := "lobby"

	switch len(args) {
	case 0:
		ch = e.app.Channel()
	case 1:
		locationID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid location id %q", args[0])
		}

		chats, err := await(ctx, func(done func([]membership.Chat, error)) {
			e.app.SyncAsync(ctx, done)
		})
		if err != nil {
			return err
		}

		i := slices.IndexFunc(chats, func(c membership.Chat) bool { return c.LocationID == locationID })
		if i < 0 {
			return fmt.Errorf("you have not joined location %d; run `matchup join %d` first", locationID, locationID)
		}
		ch = e.app.ChatChannel(chats[i])
		room = chats[i].Name
	default:
		return errors.New("usage: matchup chat [location-id]")
	}

	if err := ch.Connect(ctx); err != nil {
		return err
	}
	defer ch.Disconnect()

	fmt.Fprintf(e.stdout, "Connected to %s. Type a message and press enter; Ctrl-D leaves.\n", room)
	return chatLoop(ctx, ch, e.stdin, e.stdout)
}

func chatLoop(ctx context.Context, ch *realtime.Channel, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	messages := ch.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := ch.Send(line); err != nil {
				return err
			}

		case msg, ok := <-messages:
			if !ok {
				return ch.Err()
			}
			if msg.Kind == realtime.Binary {
				fmt.Fprintf(out, "< [%d bytes of binary data]\n", len(msg.Data))
				continue
			}
			fmt.Fprintf(out, "< %s\n", msg.Text())
		}
	}
}

func printChats(w io.Writer, chats []membership.Chat) error {
	if len(chats) == 0 {
		_, err := fmt.Fprintln(w, "No joined courts yet. Use `matchup locations` and `matchup join <id>`.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tCHAT\tID\tSTATUS")
	for _, c := range chats {
		status := "joined"
		if c.Pending {
			status = "pending"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.LocationID, c.Name, c.ID, status)
	}
	return tw.Flush()
}
