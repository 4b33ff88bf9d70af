package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gwi.com/docqa/internal/config"
)

var questions []string

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Index a document and answer questions about it from the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ctx := cmd.Context()

		app, err := NewApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer app.Close()

		if !app.Loader.Supports(path) {
			return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		session, err := app.Manager.Create()
		if err != nil {
			return err
		}
		if err := session.Upload(ctx, filepath.Base(path), f); err != nil {
			return err
		}
		if err := session.Index(ctx); err != nil {
			return err
		}
		fmt.Println(color.GreenString("Indexed %s into %d chunks", filepath.Base(path), session.Engine().Chunks()))

		for _, q := range questions {
			ans, err := session.Ask(ctx, q)
			if err != nil {
				return err
			}
			fmt.Println(color.CyanString("Q: %s", q))
			fmt.Println(ans.Display())
			if notice := ans.Notice(); notice != "" {
				fmt.Println(color.YellowString(notice))
			}
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "Question to ask once indexing is done, repeatable")
}
