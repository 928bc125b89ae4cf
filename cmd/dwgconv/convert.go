package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dyuri/dwgconv/internal/model"
	"github.com/dyuri/dwgconv/pkg/dwgconv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// versionValue is a pflag.Value accepting "R2000", "2000" or "AC1015".
type versionValue model.Version

var _ pflag.Value = (*versionValue)(nil)

func (v *versionValue) String() string { return model.Version(*v).Release() }

func (v *versionValue) Set(s string) error {
	ver, ok := parseRelease(s)
	if !ok {
		return fmt.Errorf("unknown DXF version %q", s)
	}
	*v = versionValue(ver)
	return nil
}

func (v *versionValue) Type() string { return "version" }

func parseRelease(s string) (model.Version, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for v := model.AC1006; v <= model.AC1032; v++ {
		rel := v.Release()
		if s == v.String() || s == rel || "R"+s == rel {
			return v, true
		}
	}
	return model.VersionUnknown, false
}

// dxf command
var dxfCmd = &cobra.Command{
	Use:   "dxf [input...]",
	Short: "Convert drawings to DXF",
	Long: `Convert DWG or DXF drawings to ASCII or binary DXF.

With a single input, --output names the output file. With several inputs
(or --glob), --output names a directory and every drawing is written
next to its name with a .dxf extension.`,
	RunE: runDXF,
}

var outVersion = versionValue(model.AC1015)

func init() {
	dxfCmd.Flags().StringP("output", "o", "", "Output file or directory (default: next to the input)")
	dxfCmd.Flags().Var(&outVersion, "version", "DXF release to write: R12, R14, R2000 ... R2018")
	dxfCmd.Flags().Bool("binary", false, "Write binary DXF")
	dxfCmd.Flags().String("glob", "", "Convert every file matching the pattern (** allowed)")
	dxfCmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "Number of files converted in parallel")
}

type job struct {
	in, out string
}

func runDXF(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	binary, _ := cmd.Flags().GetBool("binary")
	pattern, _ := cmd.Flags().GetString("glob")
	jobs, _ := cmd.Flags().GetInt("jobs")

	inputs := append([]string(nil), args...)
	if pattern != "" {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("bad glob pattern: %w", err)
		}
		inputs = append(inputs, matches...)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no input files")
	}

	planned, err := plan(inputs, outputPath)
	if err != nil {
		return err
	}

	wopts := dwgconv.WriteOptions{Version: model.Version(outVersion), Binary: binary, Logger: log}
	ropts := readOptions(cmd)

	var failed atomic.Int32
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for _, j := range planned {
		g.Go(func() error {
			if err := convert(j, ropts, wopts); err != nil {
				failed.Add(1)
				log.WithField("file", j.in).Error(err)
				return nil
			}
			log.WithFields(logrus.Fields{"file": j.in, "output": j.out}).Info("converted")
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(planned))
	}
	return nil
}

// plan maps inputs to output paths.
func plan(inputs []string, output string) ([]job, error) {
	if len(inputs) == 1 && output != "" && !isDir(output) {
		return []job{{in: inputs[0], out: output}}, nil
	}
	if output != "" {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	seen := make(map[string]string)
	jobs := make([]job, 0, len(inputs))
	for _, in := range inputs {
		dir := filepath.Dir(in)
		if output != "" {
			dir = output
		}
		out := filepath.Join(dir, outputName(in))
		if prev, ok := seen[out]; ok {
			return nil, fmt.Errorf("%s and %s both map to %s", prev, in, out)
		}
		if filepath.Clean(out) == filepath.Clean(in) {
			return nil, fmt.Errorf("%s would overwrite itself", in)
		}
		seen[out] = in
		jobs = append(jobs, job{in: in, out: out})
	}
	return jobs, nil
}

var wrapperExts = map[string]bool{".gz": true, ".zst": true, ".xz": true, ".lz4": true}

// outputName strips a compression suffix and the drawing extension and
// appends ".dxf".
func outputName(path string) string {
	name := filepath.Base(path)
	if ext := strings.ToLower(filepath.Ext(name)); wrapperExts[ext] {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".dxf"
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func convert(j job, ropts []dwgconv.Option, wopts dwgconv.WriteOptions) error {
	d, res, err := dwgconv.Decode(j.in, ropts...)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.WithField("file", j.in).Warn(w)
	}
	wopts.Seed = res.Checksum

	f, err := os.Create(j.out)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := dwgconv.WriteDXF(f, d, wopts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
