package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbscout/sourcing-cli/internal/bizconfig"
	"github.com/arbscout/sourcing-cli/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update layered business configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get <scope>",
	Short: "Print the stored overlay for one scope",
	Long: `Print the raw overlay stored at a scope, with its version.

Scopes are "global", "domain:<id>", or "category:<name>".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initScoring(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		scope, err := bizconfig.ParseScope(args[0])
		if err != nil {
			return err
		}

		rec, err := env.Resolver.GetScope(cmd.Context(), scope)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Printf("no overlay stored for %s\n", scope)
			return nil
		}
		return printJSON(rec)
	},
}

var configEffectiveCmd = &cobra.Command{
	Use:   "effective",
	Short: "Print the fully merged configuration for a domain/category",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initScoring(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		domainID, _ := cmd.Flags().GetInt("domain")
		category, _ := cmd.Flags().GetString("category")
		if domainID == 0 {
			domainID = cfg.Catalog.Domain
		}

		eff, err := env.Resolver.GetEffective(cmd.Context(), domainID, category)
		if err != nil {
			return err
		}
		return printJSON(eff)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <scope> <patch>",
	Short: "Merge a JSON patch into a scope's overlay",
	Long: `Merge a JSON patch into a scope's stored overlay.

The patch is a JSON object ("@file.json" reads it from a file). Nested
objects merge key by key; scalars and arrays replace. The write is
validated against the configuration it would produce and committed only
if --expected-version still matches the stored version (0 creates the
scope).

Examples:
  config set global '{"gates":{"min_roi_percent":25}}' --reason "tighten ROI floor" --actor ops
  config set domain:1 @domain1.json --expected-version 3 --reason "Q3 weights" --actor maya`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configAuditCmd = &cobra.Command{
	Use:   "audit [scope]",
	Short: "List configuration changes, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initScoring(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		actor, _ := cmd.Flags().GetString("actor")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.AuditFilter{Actor: actor, Limit: limit}
		if len(args) == 1 {
			scope, err := bizconfig.ParseScope(args[0])
			if err != nil {
				return err
			}
			filter.Scope = scope.String()
		}

		recs, err := env.Resolver.ListAudit(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("no audit records")
			return nil
		}
		for _, rec := range recs {
			fmt.Printf("%s  %-20s  v%d -> v%d  %-12s  %s\n",
				rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.Scope, rec.OldVersion, rec.NewVersion, rec.Actor, rec.Reason)
		}
		return nil
	},
}

var configScopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List scopes that have stored overlays",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initScoring(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		scopes, err := env.Resolver.ListScopes(cmd.Context())
		if err != nil {
			return err
		}
		if len(scopes) == 0 {
			fmt.Println("no overlays stored, defaults apply everywhere")
			return nil
		}
		for _, s := range scopes {
			fmt.Println(s)
		}
		return nil
	},
}

func init() {
	configEffectiveCmd.Flags().Int("domain", 0, "marketplace domain (default from config)")
	configEffectiveCmd.Flags().String("category", "", "product category overlay to apply")

	f := configSetCmd.Flags()
	f.Int64("expected-version", 0, "version the stored overlay must still have (0 creates)")
	f.String("reason", "", "why this change is being made (required)")
	f.String("actor", "", "who is making the change (required)")
	_ = configSetCmd.MarkFlagRequired("reason")
	_ = configSetCmd.MarkFlagRequired("actor")

	configAuditCmd.Flags().String("actor", "", "filter by actor")
	configAuditCmd.Flags().Int("limit", 0, "max records (default 100)")

	configCmd.AddCommand(configGetCmd, configEffectiveCmd, configSetCmd, configAuditCmd, configScopesCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	env, err := initScoring(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	scope, err := bizconfig.ParseScope(args[0])
	if err != nil {
		return err
	}

	patch := []byte(args[1])
	if strings.HasPrefix(args[1], "@") {
		patch, err = os.ReadFile(args[1][1:])
		if err != nil {
			return eris.Wrapf(err, "config: read patch file %s", args[1][1:])
		}
	}

	expectedVersion, _ := cmd.Flags().GetInt64("expected-version")
	reason, _ := cmd.Flags().GetString("reason")
	actor, _ := cmd.Flags().GetString("actor")

	result, err := env.Resolver.Update(cmd.Context(), bizconfig.UpdateRequest{
		Scope:           scope,
		Patch:           json.RawMessage(patch),
		ExpectedVersion: expectedVersion,
		Reason:          reason,
		Actor:           actor,
	})
	if err != nil {
		if eris.Is(err, store.ErrVersionConflict) {
			return eris.Wrapf(err, "config: %s changed since version %d, re-read and retry", scope, expectedVersion)
		}
		return err
	}

	zap.L().Info("configuration updated",
		zap.String("scope", scope.String()),
		zap.Int64("version", result.Record.Version),
		zap.String("actor", actor),
	)
	fmt.Printf("%s is now at version %d\n", scope, result.Record.Version)
	return nil
}
