package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dyuri/dwgconv/pkg/dwgconv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var log = newLogger(os.Stderr)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.ErrorLevel)
	return l
}

var rootCmd = &cobra.Command{
	Use:   "dwgconv",
	Short: "Read AutoCAD DWG and DXF drawings and convert them to DXF",
	Long: `dwgconv is a tool for working with AutoCAD drawings.

It decodes DWG files from R13 through R2004 (and DXF of any release),
converts them to ASCII or binary DXF, extracts their text, and prints
file metadata. Input may be compressed with gzip, zstd, xz or lz4.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetCount("verbose")
		switch {
		case verbose >= 2:
			log.SetLevel(logrus.DebugLevel)
		case verbose == 1:
			log.SetLevel(logrus.WarnLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Log warnings (-v) or debug output (-vv)")
	rootCmd.PersistentFlags().Int("max-objects", 0, "Limit on objects per DWG file (0: default)")

	rootCmd.AddCommand(dxfCmd)
	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

// readOptions returns the library options shared by all commands.
func readOptions(cmd *cobra.Command) []dwgconv.Option {
	opts := []dwgconv.Option{dwgconv.WithLogger(log)}
	if n, _ := cmd.Flags().GetInt("max-objects"); n > 0 {
		opts = append(opts, dwgconv.WithMaxObjects(n))
	}
	return opts
}

// text command
var textCmd = &cobra.Command{
	Use:   "text <input>",
	Short: "Print the TEXT and MTEXT strings of a drawing",
	Args:  cobra.ExactArgs(1),
	RunE:  runText,
}

func runText(cmd *cobra.Command, args []string) error {
	d, _, err := dwgconv.Decode(args[0], readOptions(cmd)...)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()
	for _, s := range dwgconv.ExtractText(d) {
		fmt.Fprintln(out, s)
	}
	return nil
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export <input> <output.dxf>",
	Short: "Write a simplified DXF with lines, arcs, circles, points and text",
	Long: `Write a flattened R12 style DXF that keeps only basic geometry and
text from model space. Use the dxf command for a full conversion.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	d, _, err := dwgconv.Decode(args[0], readOptions(cmd)...)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	return dwgconv.ExportDXF(args[1], d)
}

// version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dwgconv version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
	},
}
