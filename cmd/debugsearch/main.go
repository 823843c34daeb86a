// Command debugsearch runs one query through the search gateway with the
// provider keys from the environment and prints the URLs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/reportbuilder/internal/app"
	"github.com/hyperifyio/reportbuilder/internal/search"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if err := newCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("search failed")
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		api, from, to, envFile string
		limit                  int
	)
	cmd := &cobra.Command{
		Use:          "debugsearch [query]",
		Short:        "Run a single search through the primary/fallback gateway",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.LoadEnvFiles(envFile); err != nil {
				return err
			}
			q := "home battery storage"
			if len(args) == 1 {
				q = args[0]
			}
			hc := &http.Client{Timeout: 20 * time.Second}
			google := &search.Google{APIKey: os.Getenv("GOOGLE_API_KEY"), CSEID: os.Getenv("GOOGLE_CSE_ID"), HTTPClient: hc}
			brave := &search.Brave{APIKey: os.Getenv("BRAVE_API_KEY"), HTTPClient: hc}
			gw := search.NewGateway(google, brave)
			if api == "brave" {
				gw = search.NewGateway(brave, google)
			}
			gw.PauseMin, gw.PauseMax = 0, 0
			urls, err := gw.Search(cmd.Context(), nil, q, limit, search.DateRange{From: from, To: to})
			if err != nil {
				return err
			}
			for i, u := range urls {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, u)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&api, "api", "google", "primary provider: google or brave")
	cmd.Flags().IntVar(&limit, "limit", 5, "number of results")
	cmd.Flags().StringVar(&from, "from_date", "", "YYYY-MM-DD lower bound")
	cmd.Flags().StringVar(&to, "to_date", "", "YYYY-MM-DD upper bound")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with provider keys")
	cmd.SetContext(context.Background())
	return cmd
}
