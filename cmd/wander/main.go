package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/wanderrhodes/wander/config"
	"github.com/wanderrhodes/wander/internal/retrieval"
	"github.com/wanderrhodes/wander/internal/server"
)

func main() {
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "wander"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.LoadConfig(cfgPath)
			if serveAddr == "" {
				serveAddr = os.Getenv("WANDER_HTTP_ADDR")
			}
			return server.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to general.listen)")

	var docsDir string
	var indexPath string
	var index = &cobra.Command{
		Use:   "index",
		Short: "Build the knowledge-base index from a directory of documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if docsDir == "" || indexPath == "" {
				return fmt.Errorf("--docs and --out are required")
			}
			idx, err := retrieval.Create(indexPath)
			if err != nil {
				return err
			}
			defer idx.Close()
			n, err := idx.IngestDir(docsDir)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d chunks from %s into %s\n", n, docsDir, indexPath)
			return nil
		},
	}
	index.Flags().StringVar(&docsDir, "docs", "", "directory of .md/.txt knowledge-base documents")
	index.Flags().StringVar(&indexPath, "out", "", "path for the index")

	root.AddCommand(serve, index)
	_ = root.Execute()
}
