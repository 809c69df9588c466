package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/open-edge-platform/os-env-tracer/internal/chroot"
	"github.com/open-edge-platform/os-env-tracer/internal/distribution/docker"
	"github.com/open-edge-platform/os-env-tracer/internal/distributions"
	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/spec"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// Trace command flags
var (
	traceFrom      string
	traceChroot    string
	traceOutput    string
	traceProgress  bool
	traceReportDir string
)

var newSession = func(chroot string) session.Session {
	sess := session.NewLocal(chroot)
	sess.Sudo = chroot != ""
	return sess
}

func createTraceCommand() *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace [flags] [PATH...]",
		Short: "Trace files to the distributions providing them",
		Long: `Trace identifies the packages, environments, repositories and images
that provide the given paths and writes the environment specification as YAML.
Images are named as docker-image:REFERENCE. With --from, the files recorded
in an existing specification are traced again.`,
		RunE: executeTrace,
	}

	traceCmd.Flags().StringVar(&traceFrom, "from", "", "Retrace the files of an existing specification")
	traceCmd.Flags().StringVar(&traceChroot, "chroot", "", "Trace inside this chroot directory")
	traceCmd.Flags().StringVarP(&traceOutput, "output", "o", "", "Write the specification to this file (default: stdout)")
	traceCmd.Flags().BoolVar(&traceProgress, "progress", false, "Show a progress bar on stderr")
	traceCmd.Flags().StringVar(&traceReportDir, "report-dir", "", "Write a report of unresolved files to this directory")
	return traceCmd
}

func executeTrace(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	var env *chroot.ChrootEnv
	if traceChroot != "" {
		var err error
		if env, err = chroot.NewChrootEnv(traceChroot); err != nil {
			return err
		}
	}
	files, err := resolvePaths(args, env)
	if err != nil {
		return err
	}
	if traceFrom != "" {
		recorded, err := spec.Load(traceFrom, distributions.NewRegistry())
		if err != nil {
			return fmt.Errorf("loading %s: %w", traceFrom, err)
		}
		files = append(recorded.AllFiles(), files...)
		log.Infof("retracing %d files recorded in %s", len(files), traceFrom)
	}
	if len(files) == 0 {
		return fmt.Errorf("no paths to trace, usage: os-env-tracer trace PATH... or --from SPEC")
	}

	opts := distributions.Options{Config: globalConfig, ReportDir: traceReportDir}
	if traceProgress {
		bar := newProgressBar(cmd.ErrOrStderr(), len(files))
		opts.Observer = progressObserver(bar, len(files))
		defer bar.Finish()
	}

	root := ""
	if env != nil {
		root = env.ChrootEnvRoot
	}
	res, err := distributions.Retrace(cmd.Context(), newSession(root), files, opts)
	if res == nil {
		return fmt.Errorf("trace failed: %w", err)
	}
	if res.State == tracer.IterationLimitReached {
		log.Warnf("trace stopped after %d rounds, the specification may be incomplete", res.Rounds)
	}
	if werr := writeSpec(cmd, traceOutput, res.Spec); werr != nil {
		return werr
	}
	if err != nil {
		return fmt.Errorf("trace incomplete: %w", err)
	}
	return nil
}

// resolvePaths makes host paths absolute. With a chroot, host paths under
// its root are converted to the paths seen inside it and relative paths are
// rejected.
func resolvePaths(args []string, env *chroot.ChrootEnv) ([]string, error) {
	files := make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, docker.PathPrefix) {
			files = append(files, a)
			continue
		}
		if filepath.IsAbs(a) {
			if env != nil && env.Contains(a) {
				guest, err := env.GetChrootEnvPath(a)
				if err != nil {
					return nil, err
				}
				a = guest
			}
			files = append(files, a)
			continue
		}
		if env != nil {
			return nil, fmt.Errorf("path %q must be absolute when tracing inside a chroot", a)
		}
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", a, err)
		}
		files = append(files, abs)
	}
	return files, nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription("tracing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

type progress interface {
	Describe(description string)
	Set(num int) error
}

// progressObserver moves the bar to the number of files resolved so far.
// Hand-offs can grow the working set, so progress never goes backwards.
func progressObserver(bar progress, total int) func(tracer.Event) {
	best := 0
	return func(e tracer.Event) {
		bar.Describe(fmt.Sprintf("round %d: %s", e.Round, e.Tracer))
		if done := total - e.Remaining; done > best {
			best = done
			_ = bar.Set(done)
		}
	}
}

func writeSpec(cmd *cobra.Command, path string, env *spec.EnvironmentSpec) error {
	if path == "" || path == "-" {
		return spec.Write(cmd.OutOrStdout(), env)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := spec.Write(f, env); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	logger.Logger().Infof("specification written to %s", path)
	return nil
}
