package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/aussiebroadwan/jwtclient/internal/app"
	"github.com/aussiebroadwan/jwtclient/internal/devserver"
	"github.com/aussiebroadwan/jwtclient/pkg/authclient"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
	"github.com/joho/godotenv"
)

const usage = `usage: jwtclient [-url URL] <command> [flags]

commands:
  login -u USER [-p PASSWORD]   log in and store the tokens
  logout                        forget the tokens and revoke them server side
  status                        show whether a session is active
  token                         print a valid access token, refreshing if needed
  me                            show the logged in user
  dashboard                     fetch every dashboard widget concurrently
`

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, authclient.ErrUnauthorized) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg := app.LoadClientConfig()

	fs := flag.NewFlagSet("jwtclient", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	fs.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "auth server base URL")
	fs.StringVar(&cfg.KeychainDriver, "keychain", cfg.KeychainDriver, "keychain driver: memory, sqlite or redis")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	logger := slogx.New(slogx.Config{
		Service: "jwtclient",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	client, err := app.NewClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return login(ctx, client, cmdArgs, stdout)
	case "logout":
		if err := client.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "logged out")
		return nil
	case "status":
		return status(client, stdout)
	case "token":
		token, err := client.Session.ValidAccessToken(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, token)
		return nil
	case "me":
		var me devserver.MeResponse
		if err := client.API.Get(ctx, "/me", &me); err != nil {
			return err
		}
		return printJSON(stdout, me)
	case "dashboard":
		return dashboard(ctx, client, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func login(ctx context.Context, client *app.Client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", os.Getenv("JWTCLIENT_USERNAME"), "username")
	password := fs.String("p", os.Getenv("JWTCLIENT_PASSWORD"), "password (or JWTCLIENT_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("login needs -u and -p")
	}

	if err := client.Session.Login(ctx, *username, *password); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "logged in as %s\n", *username)
	return nil
}

func status(client *app.Client, stdout io.Writer) error {
	st := client.Session.Status()
	fmt.Fprintf(stdout, "state: %s\n", st.State)
	if st.Message != "" {
		fmt.Fprintf(stdout, "message: %s\n", st.Message)
	}
	fmt.Fprintf(stdout, "server: %s\n", client.Transport.BaseURL())
	return nil
}

func dashboard(ctx context.Context, client *app.Client, stdout io.Writer) error {
	widgets, err := app.FetchDashboard(ctx, client.API, devserver.Widgets)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(widgets))
	for name := range widgets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w := widgets[name]
		fmt.Fprintf(stdout, "[%s] %v (updated %s)\n", name, w.Items, w.Updated.Format("15:04:05"))
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
