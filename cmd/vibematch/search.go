package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vibematch/internal/db/memory"
	"github.com/kailas-cloud/vibematch/internal/domain/view/render"
	logpkg "github.com/kailas-cloud/vibematch/internal/logger"
	"github.com/kailas-cloud/vibematch/internal/repository/viewstate"
	"github.com/kailas-cloud/vibematch/internal/transport/backend"
	searchuc "github.com/kailas-cloud/vibematch/internal/usecase/search"
)

const defaultBackendURL = "http://localhost:5000"

type searchFlags struct {
	backendURL string
	timeout    time.Duration
	asJSON     bool
	logLevel   string
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one vibe search and print the result page",
		Example: `  vibematch search "cozy comfortable"
  vibematch search --json beach summer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, flags, strings.Join(args, " "))
		},
	}

	backendURL := os.Getenv("VIBEMATCH_BACKEND_URL")
	if backendURL == "" {
		backendURL = defaultBackendURL
	}
	cmd.Flags().StringVar(&flags.backendURL, "backend-url", backendURL, "search backend base URL")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "backend call timeout (0 = none)")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the view state as JSON")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	return cmd
}

// runSearch drives one view through mount, submit and settle, then prints it.
// A blank query prints the idle page, mirroring the silent no-op of the web form.
func runSearch(cmd *cobra.Command, flags searchFlags, query string) error {
	ctx := cmd.Context()

	logger, err := logpkg.NewLogger("cli", flags.logLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := backend.NewClient(&backend.Config{
		BaseURL: flags.backendURL,
		Timeout: flags.timeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}

	repo := viewstate.New(memory.NewStore(), time.Hour)
	views := searchuc.New(repo, client, logger).WithBaseContext(ctx)

	id, err := views.Mount(ctx, query)
	if err != nil {
		return err
	}
	if _, err = views.Submit(ctx, id); err != nil {
		return err
	}
	views.Wait()

	st, err := views.Get(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	return writePage(out, render.Build(st))
}

// writePage lays a page out as plain text.
func writePage(w io.Writer, p render.Page) error {
	var b strings.Builder

	b.WriteString("Vibe Matcher ✨\nFind Fashion That Matches Your Energy\n\n")
	fmt.Fprintf(&b, "%s %s\n", p.SubmitLabel, p.Query)

	if p.ErrorBanner != "" {
		fmt.Fprintf(&b, "\n%s\n", p.ErrorBanner)
	}
	if p.LatencyBanner != "" {
		fmt.Fprintf(&b, "\n%s\n", p.LatencyBanner)
	}

	if p.ShowSuggestions {
		b.WriteString("\n✨ Popular Vibes\n")
		for _, s := range p.Suggestions {
			fmt.Fprintf(&b, "  [%d] %s %s\n", s.Index, s.Emoji, s.Text)
		}
	}

	if len(p.Cards) > 0 {
		fmt.Fprintf(&b, "\n%s\n", p.ResultsHeading)
		for _, c := range p.Cards {
			fmt.Fprintf(&b, "\n%s %s  %s\n", c.Icon, c.Name, c.Score)
			if c.Description != "" {
				fmt.Fprintf(&b, "   %s\n", c.Description)
			}
			if len(c.Tags) > 0 {
				fmt.Fprintf(&b, "   %s\n", strings.Join(c.Tags, " "))
			}
			fmt.Fprintf(&b, "   %s\n", c.Price)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
