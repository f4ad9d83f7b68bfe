// Command engram is a small CLI for talking to a running Engram service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/engramlabs/engram-go/pkg/core"
	"github.com/engramlabs/engram-go/pkg/plugin"
)

var (
	serverURL string
	apiKey    string
)

func main() {
	root := &cobra.Command{
		Use:   "engram",
		Short: "Client for the Engram memory service",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", plugin.DefaultServerURL, "Engram server URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("ENGRAM_API_KEY"), "API key")

	root.AddCommand(healthCmd(), statsCmd(), searchCmd(), storeCmd(), contextCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func client() *plugin.Client {
	return plugin.NewClient(serverURL, apiKey)
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().Health(context.Background()); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show service counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := client().Stats(context.Background())
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func searchCmd() *cobra.Command {
	var limit int
	var category string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memories, err := client().Search(context.Background(), &core.SearchRequest{
				Query:    args[0],
				Category: core.Category(category),
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			for _, m := range memories {
				fmt.Printf("%d  [%s]  %.3f  %s\n", m.ID, m.Category, m.Score, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict to a category")
	return cmd
}

func storeCmd() *cobra.Command {
	var category string
	var subject string

	cmd := &cobra.Command{
		Use:   "store <content>",
		Short: "Store a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client().Store(context.Background(), &core.StoreRequest{
				Content:  args[0],
				Category: core.Category(category),
				Subject:  subject,
				Source:   "cli",
			})
			if err != nil {
				return err
			}
			if result.Deduplicated {
				fmt.Printf("duplicate of %d\n", result.Memory.ID)
			} else {
				fmt.Printf("stored %d\n", result.Memory.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "context", "memory category")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "memory subject")
	return cmd
}

func contextCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble the tiered context blob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			blob, err := client().Context(context.Background(), query, limit)
			if err != nil {
				return err
			}
			fmt.Print(blob)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "relevant memories to include")
	return cmd
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
