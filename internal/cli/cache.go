package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"risk-console/internal/query"
	"risk-console/pkg/httpmiddleware"
)

func newCacheCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the query cache of a running console",
	}

	var consoleURL, session string
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print the cache statistics served at /api/cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base := consoleURL
			if base == "" {
				base = "http://localhost:" + e.cfg.Port
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, strings.TrimRight(base, "/")+"/api/cache", nil)
			if err != nil {
				return err
			}
			if session != "" {
				req.AddCookie(&http.Cookie{Name: "console_session", Value: session})
			}
			client := &http.Client{
				Timeout: 10 * time.Second,
				Transport: httpmiddleware.Wrap(httpmiddleware.DefaultTransport(),
					httpmiddleware.JSON(),
					httpmiddleware.Logger(e.logger, 0),
				),
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("fetch cache stats: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("fetch cache stats: %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}

			var s query.Stats
			if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
				return fmt.Errorf("decode cache stats: %w", err)
			}
			return e.emit(cmd, s, func(tw io.Writer) {
				writeRow(tw, "Backend", s.Store.Backend)
				writeRow(tw, "Entries", s.Store.Entries)
				writeRow(tw, "TTL", s.TTL)
				writeRow(tw, "Hits", s.Hits)
				writeRow(tw, "Misses", s.Misses)
				writeRow(tw, "Coalesced", s.Coalesced)
				writeRow(tw, "Stale drops", s.StaleDrops)
				writeRow(tw, "Invalidations", s.Invalidations)
				writeRow(tw, "Generation", s.Generation)
				for _, k := range s.Keys {
					writeRow(tw, "Key", k)
				}
			})
		},
	}
	stats.Flags().StringVar(&consoleURL, "console-url", "", "running console base URL (default http://localhost:$PORT)")
	stats.Flags().StringVar(&session, "session", "", "console_session cookie when operator login is enabled")

	cmd.AddCommand(stats)
	return cmd
}
