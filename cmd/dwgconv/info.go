package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/dyuri/dwgconv/internal/dwg"
	"github.com/dyuri/dwgconv/internal/model"
	"github.com/dyuri/dwgconv/pkg/dwgconv"
	"github.com/spf13/cobra"
)

// info command
var infoCmd = &cobra.Command{
	Use:   "info <input>",
	Short: "Display drawing information",
	Long: `Display the release, code page, sections, table and entity counts,
checksum and file times of a drawing.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().Bool("json", false, "Output as JSON")
	infoCmd.Flags().Bool("brief", false, "Show only summary")
}

type fileInfo struct {
	File     string         `json:"file"`
	Size     int64          `json:"fileSize"`
	Modified time.Time      `json:"modified"`
	Accessed time.Time      `json:"accessed"`
	Created  *time.Time     `json:"created,omitempty"`
	Version  string         `json:"version"`
	Release  string         `json:"release"`
	CodePage string         `json:"codepage,omitempty"`
	Checksum string         `json:"checksum"`
	State    string         `json:"state"`
	Reason   string         `json:"reason,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Sections []sectionInfo  `json:"sections,omitempty"`
	Tables   map[string]int `json:"tables"`
	Blocks   int            `json:"blocks"`
	Entities map[string]int `json:"entities"`
	Skipped  int            `json:"skipped"`
	Dropped  int            `json:"dropped"`
}

type sectionInfo struct {
	Name         string `json:"name"`
	Offset       int64  `json:"offset"`
	Size         int64  `json:"size"`
	Decompressed int64  `json:"decompressed,omitempty"`
	Pages        int    `json:"pages,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	brief, _ := cmd.Flags().GetBool("brief")

	stat, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("stat input file: %w", err)
	}
	ts, err := times.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("stat input file: %w", err)
	}

	d, res, err := dwgconv.Decode(inputPath, readOptions(cmd)...)
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}

	info := collectInfo(d, res)
	info.File = inputPath
	info.Size = stat.Size()
	info.Modified = ts.ModTime()
	info.Accessed = ts.AccessTime()
	if ts.HasBirthTime() {
		bt := ts.BirthTime()
		info.Created = &bt
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}
	printInfo(out, info, brief)
	return nil
}

func collectInfo(d *model.Drawing, res *dwgconv.Result) *fileInfo {
	info := &fileInfo{
		Version:  res.Version.String(),
		Release:  res.Version.Release(),
		CodePage: res.CodePage,
		Checksum: fmt.Sprintf("%016x", res.Checksum),
		State:    res.State.String(),
		Tables: map[string]int{
			"ltype":    len(d.LineTypes),
			"layer":    len(d.Layers),
			"style":    len(d.TextStyles),
			"dimstyle": len(d.DimStyles),
			"vport":    len(d.Vports),
			"appid":    len(d.AppIDs),
		},
		Blocks:   len(d.Blocks),
		Entities: make(map[string]int),
		Skipped:  res.Skipped,
		Dropped:  res.Dropped,
	}
	if res.Reason != dwg.ReasonNone {
		info.Reason = res.Reason.String()
	}
	if info.CodePage == "" && d.Header != nil {
		info.CodePage, _ = d.Header.String("$DWGCODEPAGE")
	}
	for _, w := range res.Warnings {
		info.Warnings = append(info.Warnings, w.Error())
	}
	for _, s := range res.Sections {
		info.Sections = append(info.Sections, sectionInfo{
			Name:         s.Name,
			Offset:       s.Offset,
			Size:         s.Size,
			Decompressed: s.DecompressedSize,
			Pages:        len(s.Pages),
		})
	}
	for _, e := range d.AllEntities() {
		info.Entities[e.Kind().String()]++
	}
	return info
}

func printInfo(w io.Writer, info *fileInfo, brief bool) {
	total := 0
	for _, n := range info.Entities {
		total += n
	}
	if brief {
		fmt.Fprintf(w, "%s: %s (%s) CP=%s Layers=%d Blocks=%d Entities=%d\n",
			info.File, info.Release, info.Version, info.CodePage,
			info.Tables["layer"], info.Blocks, total)
		return
	}

	fmt.Fprintf(w, "Drawing: %s\n", info.File)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "File:")
	fmt.Fprintf(w, "  Size:             %s (%d bytes)\n", formatBytes(info.Size), info.Size)
	fmt.Fprintf(w, "  Modified:         %s\n", info.Modified.Format(time.RFC3339))
	fmt.Fprintf(w, "  Accessed:         %s\n", info.Accessed.Format(time.RFC3339))
	if info.Created != nil {
		fmt.Fprintf(w, "  Created:          %s\n", info.Created.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Checksum:         %s\n", info.Checksum)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Header:")
	fmt.Fprintf(w, "  Version:          %s (%s)\n", info.Version, info.Release)
	fmt.Fprintf(w, "  CodePage:         %s\n", info.CodePage)
	fmt.Fprintf(w, "  State:            %s\n", info.State)
	if info.Reason != "" {
		fmt.Fprintf(w, "  First failure:    %s\n", info.Reason)
	}
	fmt.Fprintln(w)

	if len(info.Sections) > 0 {
		fmt.Fprintln(w, "Sections:")
		for _, s := range info.Sections {
			fmt.Fprintf(w, "  %-24s offset 0x%08x size %d", s.Name, s.Offset, s.Size)
			if s.Pages > 0 {
				fmt.Fprintf(w, " (%d pages, %d decompressed)", s.Pages, s.Decompressed)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Tables:")
	for _, name := range sortedKeys(info.Tables) {
		fmt.Fprintf(w, "  %-18s%d\n", strings.ToUpper(name)+":", info.Tables[name])
	}
	fmt.Fprintf(w, "  %-18s%d\n", "BLOCKS:", info.Blocks)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Entities:")
	for _, name := range sortedKeys(info.Entities) {
		fmt.Fprintf(w, "  %-18s%d\n", name+":", info.Entities[name])
	}
	fmt.Fprintf(w, "  %-18s%d\n", "Total:", total)
	if info.Skipped > 0 || info.Dropped > 0 {
		fmt.Fprintf(w, "  Skipped %d unsupported, dropped %d broken\n", info.Skipped, info.Dropped)
	}

	if len(info.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(info.Warnings))
		for _, warn := range info.Warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warn)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
