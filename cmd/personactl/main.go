// Command personactl inspects archetypes, previews composed personas and lists
// recent persona fallbacks.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/wolfman30/persona-platform/internal/app/bootstrap"
	"github.com/wolfman30/persona-platform/internal/audit"
	"github.com/wolfman30/persona-platform/internal/channel"
	appconfig "github.com/wolfman30/persona-platform/internal/config"
	"github.com/wolfman30/persona-platform/internal/persona"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

func main() {
	if err := newRootCmd(appconfig.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *appconfig.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "personactl",
		Short:        "Inspect and preview voice assistant personas",
		SilenceUsage: true,
	}
	root.AddCommand(
		newArchetypesCmd(cfg),
		newComposeCmd(cfg),
		newFallbacksCmd(cfg),
	)
	return root
}

func newArchetypesCmd(cfg *appconfig.Config) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "archetypes",
		Short: "List archetype keys and voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := localService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			list := svc.Archetypes()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVOICE")
			for _, a := range list {
				fmt.Fprintf(tw, "%s\t%s\n", a.Key, a.Voice)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newComposeCmd(cfg *appconfig.Config) *cobra.Command {
	var (
		tenantID string
		ch       string
		language string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Resolve and compose the persona for a tenant and channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := localService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			p, ident, err := svc.Persona(cmd.Context(), persona.Request{
				TenantID: tenantID,
				Channel:  channel.Parse(ch),
				Language: language,
				Remote:   true,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), persona.PersonaResponse{
					Persona:    p,
					Archetype:  ident.ArchetypeKey,
					Channel:    ident.Channel,
					Resolution: ident.Resolution,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archetype: %s\nvoice:     %s\nlanguage:  %s\nsource:    %s\n",
				ident.ArchetypeKey, p.Voice, p.Metadata.Language, ident.Resolution.Source)
			if ident.Resolution.Reason != "" {
				fmt.Fprintf(out, "reason:    %s\n", ident.Resolution.Reason)
			}
			fmt.Fprintf(out, "\n%s\n", p.InstructionText)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id (empty for anonymous)")
	cmd.Flags().StringVar(&ch, "channel", string(channel.WidgetB2C), "channel type")
	cmd.Flags().StringVar(&language, "language", "", "language override")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newFallbacksCmd(cfg *appconfig.Config) *cobra.Command {
	var (
		tenantID string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "fallbacks",
		Short: "List recent degraded persona resolutions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(cfg.DatabaseURL) == "" {
				return errors.New("DATABASE_URL is required")
			}
			pool, err := pgxpool.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()
			events, err := audit.NewRecorder(pool).ListRecent(cmd.Context(), tenantID, limit)
			if err != nil {
				return err
			}
			return printFallbacks(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "filter by tenant id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}

func printFallbacks(w io.Writer, events []audit.FallbackEvent) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTENANT\tCHANNEL\tREQUESTED\tRESOLVED\tREASON")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), e.TenantID, e.Channel,
			e.RequestedArchetype, e.ResolvedArchetype, e.Reason)
	}
	return tw.Flush()
}

// localService builds a persona service over the embedded catalog, the demo
// tenants and a Redis store when REDIS_ADDR is set.
func localService(ctx context.Context, cfg *appconfig.Config) (*persona.Service, error) {
	logger := logging.New("error")
	catalog, err := bootstrap.BuildCatalog(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	backends := bootstrap.TenantBackends{Redis: bootstrap.BuildRedisClient(ctx, cfg, logger, true)}
	dir, err := bootstrap.BuildTenantDirectory(cfg, backends, logger)
	if err != nil {
		return nil, err
	}
	return bootstrap.BuildPersonaService(cfg, bootstrap.PersonaDeps{Catalog: catalog, Directory: dir}, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
