package venv

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
)

const (
	configFile   = "pyvenv.cfg"
	activateFile = "bin/activate"
)

type listEntry struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Editable string `json:"editable_project_location"`
}

// environment is what the tracer learned about one prefix.
type environment struct {
	pythonVersion string
	owners        map[string]tracer.Fields
}

// Tracer attributes files to pip packages of virtual environments.
// Editable installs hand their project location back to the loop.
type Tracer struct {
	sess   session.Session
	opts   tracer.BatchOptions
	finder *tracer.RootFinder
	envs   map[string]*environment
}

func NewTracer(sess session.Session, opts tracer.BatchOptions) *Tracer {
	t := &Tracer{sess: sess, opts: opts, envs: map[string]*environment{}}
	t.finder = tracer.NewRootFinder(func(ctx context.Context, dir string) (bool, error) {
		ok, err := sess.Exists(ctx, path.Join(dir, configFile))
		if err != nil || !ok {
			return false, err
		}
		return sess.Exists(ctx, path.Join(dir, activateFile))
	})
	return t
}

func (t *Tracer) Name() string      { return Tag }
func (t *Tracer) HandlesDirs() bool { return false }

func (t *Tracer) IdentifyDistributions(ctx context.Context, files []string) ([]tracer.Result, error) {
	var prefixes []string
	byPrefix := map[string][]string{}
	for _, f := range files {
		prefix, ok, err := t.finder.Find(ctx, f)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, seen := byPrefix[prefix]; !seen {
			prefixes = append(prefixes, prefix)
		}
		byPrefix[prefix] = append(byPrefix[prefix], f)
	}
	if len(prefixes) == 0 {
		return nil, nil
	}

	dist := &Distribution{Name: Tag}
	claimed := map[string]bool{}
	var handoff []string
	for _, prefix := range prefixes {
		env, err := t.environment(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if env == nil {
			continue
		}
		newPackage := func(f tracer.Fields) (*Package, bool) {
			return &Package{Name: f["name"], Version: f["version"], EditableLocation: f["editable"]}, f["name"] != ""
		}
		packages, unknown, err := tracer.GroupFiles(ctx, t.sess, byPrefix[prefix], env.owners, newPackage, prefix)
		if err != nil {
			return nil, err
		}
		if len(packages) == 0 {
			continue
		}
		for _, f := range byPrefix[prefix] {
			claimed[f] = true
		}
		for _, u := range unknown {
			claimed[u] = false
		}
		for _, p := range packages {
			if p.EditableLocation != "" {
				handoff = append(handoff, p.EditableLocation)
			}
		}
		dist.Environments = append(dist.Environments, &Environment{
			Path: prefix, PythonVersion: env.pythonVersion, Packages: packages,
		})
	}
	if len(dist.Environments) == 0 {
		return nil, nil
	}
	dist.Normalize()

	var remaining []string
	seen := map[string]bool{}
	for _, f := range files {
		seen[f] = true
		if !claimed[f] {
			remaining = append(remaining, f)
		}
	}
	for _, loc := range handoff {
		if !seen[loc] {
			seen[loc] = true
			remaining = append(remaining, loc)
			logger.Logger().Infof("editable install at %s handed over for tracing", loc)
		}
	}
	return []tracer.Result{{Distribution: dist, Remaining: remaining}}, nil
}

// environment reads the configuration and installed packages of prefix.
// A nil environment means pip could not be queried there.
func (t *Tracer) environment(ctx context.Context, prefix string) (*environment, error) {
	log := logger.Logger()
	if env, ok := t.envs[prefix]; ok {
		return env, nil
	}

	cfg, err := t.sess.Read(ctx, path.Join(prefix, configFile))
	if err != nil {
		return nil, err
	}
	env := &environment{pythonVersion: parseConfigVersion(cfg), owners: map[string]tracer.Fields{}}

	pip := path.Join(prefix, "bin", "pip")
	out, _, err := t.sess.ExecuteCommand(ctx, []string{pip, "list", "--format=json"}, t.opts.Exec)
	if err != nil {
		if _, ok := session.IsCommandError(err); ok && ctx.Err() == nil {
			log.Warnf("pip unusable in %s: %v", prefix, err)
			t.envs[prefix] = nil
			return nil, nil
		}
		return nil, err
	}
	var entries []listEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		return nil, fmt.Errorf("parsing pip list of %s: %w", prefix, err)
	}

	if len(entries) > 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		opts := t.opts
		opts.Accept = func(*session.CommandError) bool { return true }
		results, err := tracer.Batch(ctx, t.sess, []string{pip, "show", "-f"}, names, opts)
		if err != nil {
			return nil, err
		}
		attribution := tracer.NewAttribution(Tag)
		for _, r := range results {
			for _, info := range parseShow(r.Stdout) {
				fields := tracer.Fields{"name": info.name, "version": info.version, "editable": info.editable}
				for _, f := range info.files {
					attribution.Attribute(f, fields)
				}
			}
		}
		for file, fields := range attribution.Resolve() {
			if fields != nil {
				env.owners[file] = fields
			}
		}
	}
	t.envs[prefix] = env
	return env, nil
}

// parseConfigVersion returns the Python version recorded in pyvenv.cfg.
func parseConfigVersion(cfg string) string {
	values := map[string]string{}
	for _, line := range strings.Split(cfg, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if ok {
			values[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if v := values["version"]; v != "" {
		return v
	}
	if v := values["version_info"]; v != "" {
		parts := strings.SplitN(v, ".", 4)
		return strings.Join(parts[:min(3, len(parts))], ".")
	}
	return ""
}

type showInfo struct {
	name, version, editable string
	// absolute paths
	files []string
}

// parseShow parses pip show -f output; stanzas are separated by "---".
func parseShow(out string) []showInfo {
	var (
		infos    []showInfo
		cur      *showInfo
		location string
		inFiles  bool
	)
	flush := func() {
		if cur != nil && cur.name != "" {
			infos = append(infos, *cur)
		}
		cur, location, inFiles = &showInfo{}, "", false
	}
	flush()
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		if inFiles && strings.HasPrefix(line, "  ") {
			rel := strings.TrimSpace(line)
			if location != "" && rel != "" {
				cur.files = append(cur.files, path.Clean(path.Join(location, rel)))
			}
			continue
		}
		inFiles = false
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch k {
		case "Name":
			cur.name = v
		case "Version":
			cur.version = v
		case "Location":
			location = v
		case "Editable project location":
			cur.editable = v
		case "Files":
			inFiles = true
		}
	}
	flush()
	return infos
}
