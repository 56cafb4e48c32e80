package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zsprackett/nexus-console/internal/activity"
	"github.com/zsprackett/nexus-console/internal/config"
	"github.com/zsprackett/nexus-console/internal/demo"
	"github.com/zsprackett/nexus-console/internal/nexus"
	"github.com/zsprackett/nexus-console/internal/webserver"
)

// palette holds ANSI sequences, empty when stdout is not a terminal.
type palette struct {
	bold, dim, red, yellow, green, reset string
}

func newPalette() palette {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return palette{}
	}
	return palette{
		bold:   "\033[1m",
		dim:    "\033[2m",
		red:    "\033[31m",
		yellow: "\033[33m",
		green:  "\033[32m",
		reset:  "\033[0m",
	}
}

func (p palette) priority(s string) string {
	switch strings.ToLower(s) {
	case "critical", "urgent", "high":
		return p.red
	case "medium":
		return p.yellow
	default:
		return p.green
	}
}

func newStatusCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current capture status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(false); err != nil {
				return err
			}
			defer e.close()

			st, err := e.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			p := newPalette()
			out := cmd.OutOrStdout()
			state := p.dim + "stopped" + p.reset
			if st.IsRunning {
				state = p.green + "running" + p.reset
			}
			focus := "off"
			if st.IsFocusMode {
				focus = "on"
			}
			fmt.Fprintf(out, "%sNEXUS%s  %s  focus %s  %s activities\n",
				p.bold, p.reset, state, focus, humanize.Comma(int64(st.ActivityCount)))
			if !st.LatestAlert.Empty() {
				a := st.LatestAlert
				fmt.Fprintf(out, "%s[%s]%s %s\n", p.priority(a.Priority), strings.ToUpper(a.Priority), p.reset, a.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status response")
	return cmd
}

func newActionCmd(e *env, use, short string, call func(ctx context.Context, c *nexus.Client) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(false); err != nil {
				return err
			}
			defer e.close()

			msg, err := call(cmd.Context(), e.client())
			if err != nil {
				e.logger.Warn("action failed", "action", use, "err", err)
				return err
			}
			e.logger.Info("action ok", "action", use)
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newQueryCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question about recent activity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(false); err != nil {
				return err
			}
			defer e.close()

			question := strings.Join(args, " ")
			ctx, cancel := context.WithTimeout(cmd.Context(), 6*e.cfg.Timeout())
			defer cancel()
			answer, err := e.client().Query(ctx, question)
			if err != nil {
				return err
			}
			if store := e.openJournal(); store != nil {
				if err := store.InsertQuery(question, answer); err != nil {
					e.logger.Debug("journal query failed", "err", err)
				}
				store.Close()
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}

func newActivitiesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "activities",
		Short: "List recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(false); err != nil {
				return err
			}
			defer e.close()

			records, err := e.client().Activities(cmd.Context())
			if err != nil {
				return err
			}
			p := newPalette()
			out := cmd.OutOrStdout()
			lines := activity.Render(records, time.Local)
			if len(lines) == 0 {
				fmt.Fprintln(out, "no activity yet")
				return nil
			}
			for _, l := range lines {
				fmt.Fprintf(out, "%s%s%s  %s%s%s  %s\n",
					p.dim, l.Time, p.reset,
					p.priority(l.Priority), activity.PadApp(l.AppName, 14), p.reset,
					l.Description)
			}
			fmt.Fprintf(out, "\n%s\n", activity.Sparkline(activity.BuildSeries(records)))
			return nil
		},
	}
}

func newHistoryCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled state changes and questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(false); err != nil {
				return err
			}
			defer e.close()

			store, err := openDB()
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			evts, err := store.RecentEvents(limit)
			if err != nil {
				return err
			}
			queries, err := store.RecentQueries(limit)
			if err != nil {
				return err
			}

			p := newPalette()
			out := cmd.OutOrStdout()
			for _, ev := range evts {
				fmt.Fprintf(out, "%s%-16s%s %-16s %s\n", p.dim, humanize.Time(ev.Ts), p.reset, ev.EventType, ev.Detail)
			}
			if len(queries) > 0 {
				fmt.Fprintln(out)
			}
			for _, q := range queries {
				fmt.Fprintf(out, "%s%-16s%s %s%s%s\n  %s\n", p.dim, humanize.Time(q.Ts), p.reset, p.bold, q.Question, p.reset, q.Answer)
			}
			if last := store.LastPoll(); !last.IsZero() {
				fmt.Fprintf(out, "\nlast successful poll %s\n", humanize.Time(last))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "entries to show")
	return cmd
}

func newHeadlessCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "headless",
		Short: "Poll, notify and serve the mirror without a dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(true); err != nil {
				return err
			}
			defer e.close()

			ctx, stop := signalContext()
			defer stop()

			w := e.wire(e.client(), e.openJournal(), nil)
			defer w.close()
			e.watchConfig(ctx, w.notifier)
			w.start()

			w.mon.Start()
			e.logger.Info("headless monitor running", "server", e.cfg.ServerURL, "mirror", e.cfg.Mirror.Enabled)
			<-ctx.Done()
			w.mon.Stop()
			e.logger.Info("headless monitor stopped")
			return nil
		},
	}
}

func newDemoCmd(e *env) *cobra.Command {
	var seed int
	var stringAnalysis bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Serve an in-memory status service with sample activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(true); err != nil {
				return err
			}
			defer e.close()

			svc := demo.New(demo.Options{
				CaptureInterval: config.Duration(e.cfg.Demo.CaptureInterval, 3*time.Second),
				StringAnalysis:  stringAnalysis || e.cfg.Demo.StringAnalysis,
				Seed:            seed,
			}, e.logger)
			defer svc.Close()

			addr := fmt.Sprintf("%s:%d", e.cfg.Demo.Host, e.cfg.Demo.Port)
			srv := &http.Server{Addr: addr, Handler: svc.Handler(), ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signalContext()
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			e.logger.Info("demo service listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&seed, "seed", 20, "activities to pre-populate")
	cmd.Flags().BoolVar(&stringAnalysis, "string-analysis", false, "send analysis as JSON-encoded strings")
	return cmd
}

func newTokenCmd(e *env) *cobra.Command {
	var ttl string
	cmd := &cobra.Command{
		Use:   "token <client-name>",
		Short: "Issue an access token for the mirror server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(false); err != nil {
				return err
			}
			defer e.close()

			if err := config.EnsureMirrorSecret(e.configPath, &e.cfg); err != nil {
				return fmt.Errorf("persist mirror secret: %w", err)
			}
			if ttl == "" {
				ttl = e.cfg.Mirror.TokenTTL
			}
			token, err := webserver.IssueAccessToken(e.cfg.Mirror.JWTSecret, args[0], config.Duration(ttl, 24*time.Hour))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&ttl, "ttl", "", "token lifetime (default from config)")
	return cmd
}
