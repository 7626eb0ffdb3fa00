package main

import (
	"strconv"
	"strings"

	"github.com/foxseedlab/bolo/internal/transcriber"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and the tags accepted for each",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Language", "Aliases", "Built-in hints"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)

		vocab := transcriber.DefaultVocabulary()
		for _, lang := range transcriber.SupportedLanguages() {
			table.Append([]string{
				string(lang),
				strings.Join(transcriber.Aliases(lang), ", "),
				strconv.Itoa(len(vocab.Hints(lang))),
			})
		}
		table.Render()
	},
}
