// Command dwg2text prints the TEXT and MTEXT strings of a DWG or DXF
// drawing, one per line.
package main

import (
	"fmt"
	"os"

	"github.com/dyuri/dwgconv/pkg/dwgconv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "dwg2text <input>",
	Short:         "Print the text strings of a drawing",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logrus.New()
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		log.SetLevel(logrus.ErrorLevel)

		d, _, err := dwgconv.Decode(args[0], dwgconv.WithLogger(log))
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		out := cmd.OutOrStdout()
		for _, s := range dwgconv.ExtractText(d) {
			fmt.Fprintln(out, s)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
