package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/meetscribe/internal/glossary"
	"github.com/MrWong99/meetscribe/internal/transcript"
)

func newGlossaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "glossary <file> [sample text...]",
		Short: "Show the compiled rules of a glossary and test them on sample text",
		Long: `glossary loads a glossary file and prints every term with its aliases in
the order they are applied. With sample text it also prints the live
correction and the hints the text would produce.`,
		Example: `  meetscribe glossary glossary.yaml
  meetscribe glossary glossary.yaml "the escaun board for b 2"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			g, err := glossary.Parse(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d terms, %d with aliases\n", g.Len(), len(g.Rules()))
			for _, r := range g.Rules() {
				mode := "hint"
				if r.LiveReplace {
					mode = "live"
				}
				fmt.Fprintf(out, "  %-20s [%s] %s\n", r.Term, mode, strings.Join(r.Aliases, ", "))
			}

			if len(args) == 1 {
				return nil
			}
			sample := strings.Join(args[1:], " ")
			c := transcript.New(g)
			fmt.Fprintf(out, "\nclean: %s\n", c.CleanLiveText(sample))
			for _, h := range c.GenerateHints(sample) {
				fmt.Fprintf(out, "hint:  %s\n", h.Message)
			}
			return nil
		},
	}
}
