package conda

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

const metaDir = "conda-meta"

// metaRecord is the part of a conda-meta/<pkg>.json file we read.
type metaRecord struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Build   string   `json:"build"`
	Channel string   `json:"channel"`
	Files   []string `json:"files"`
}

type condaInfo struct {
	CondaVersion string   `json:"conda_version"`
	Channels     []string `json:"channels"`
}

// Tracer attributes files to conda packages through conda-meta records.
type Tracer struct {
	sess   session.Session
	opts   tracer.BatchOptions
	finder *tracer.RootFinder
	// metadata of environments already read, keyed by prefix
	owners map[string]map[string]tracer.Fields
}

func NewTracer(sess session.Session, opts tracer.BatchOptions) *Tracer {
	t := &Tracer{sess: sess, opts: opts, owners: map[string]map[string]tracer.Fields{}}
	t.finder = tracer.NewRootFinder(func(ctx context.Context, dir string) (bool, error) {
		return sess.IsDir(ctx, path.Join(dir, metaDir))
	})
	return t
}

func (t *Tracer) Name() string      { return Tag }
func (t *Tracer) HandlesDirs() bool { return false }

// installation returns the conda installation owning prefix: the parent
// of an envs/ directory, or prefix itself.
func installation(prefix string) string {
	parent := path.Dir(prefix)
	if path.Base(parent) == "envs" {
		return path.Dir(parent)
	}
	return prefix
}

func (t *Tracer) IdentifyDistributions(ctx context.Context, files []string) ([]tracer.Result, error) {
	log := logger.Logger()

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

	var (
		order []string
		dists = map[string]*Distribution{}
	)
	claimedBy := map[string]string{}
	for _, prefix := range prefixes {
		owners, err := t.environmentOwners(ctx, prefix)
		if err != nil {
			return nil, err
		}
		newPackage := func(f tracer.Fields) (*Package, bool) {
			return &Package{Name: f["name"], Version: f["version"], Build: f["build"], Channel: f["channel"]}, f["name"] != ""
		}
		fieldsByFile := map[string]tracer.Fields{}
		for _, f := range byPrefix[prefix] {
			rel := strings.TrimPrefix(strings.TrimPrefix(f, prefix), "/")
			if fields, ok := owners[rel]; ok {
				fieldsByFile[f] = fields
			}
		}
		packages, unknown, err := tracer.GroupFiles(ctx, t.sess, byPrefix[prefix], fieldsByFile, newPackage, prefix)
		if err != nil {
			return nil, err
		}
		if len(packages) == 0 {
			continue
		}
		base := installation(prefix)
		unresolved := map[string]bool{}
		for _, u := range unknown {
			unresolved[u] = true
		}
		for _, f := range byPrefix[prefix] {
			if !unresolved[f] {
				claimedBy[f] = base
			}
		}

		dist, ok := dists[base]
		if !ok {
			dist = &Distribution{Name: Tag, Path: base}
			if err := t.describe(ctx, dist); err != nil {
				return nil, err
			}
			dists[base] = dist
			order = append(order, base)
		}
		dist.Environments = append(dist.Environments, &Environment{Path: prefix, Packages: packages})
		log.Infof("conda environment %s: %d packages", prefix, len(packages))
	}

	// each result's remaining set excludes the files of every distribution yielded so far
	var results []tracer.Result
	done := map[string]bool{}
	for _, base := range order {
		dists[base].Normalize()
		var remaining []string
		for _, f := range files {
			if claimedBy[f] == base {
				done[f] = true
			}
			if !done[f] {
				remaining = append(remaining, f)
			}
		}
		results = append(results, tracer.Result{Distribution: dists[base], Remaining: remaining})
	}
	return results, nil
}

// environmentOwners maps every file recorded in prefix's conda-meta, relative
// to prefix, to its package fields.
func (t *Tracer) environmentOwners(ctx context.Context, prefix string) (map[string]tracer.Fields, error) {
	if owners, ok := t.owners[prefix]; ok {
		return owners, nil
	}
	meta := path.Join(prefix, metaDir)
	out, _, err := t.sess.ExecuteCommand(ctx, []string{"ls", "-1", meta}, t.opts.Exec)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", meta, err)
	}

	owners := map[string]tracer.Fields{}
	attribution := tracer.NewAttribution(Tag)
	for _, name := range strings.Split(out, "\n") {
		name = strings.TrimSpace(name)
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		content, err := t.sess.Read(ctx, path.Join(meta, name))
		if err != nil {
			return nil, err
		}
		var rec metaRecord
		if err := json.Unmarshal([]byte(content), &rec); err != nil {
			logger.Logger().Warnf("skipping unreadable conda record %s: %v", path.Join(meta, name), err)
			continue
		}
		fields := tracer.Fields{"name": rec.Name, "version": rec.Version, "build": rec.Build, "channel": rec.Channel}
		for _, f := range rec.Files {
			attribution.Attribute(f, fields)
		}
	}
	for file, fields := range attribution.Resolve() {
		if fields != nil {
			owners[file] = fields
		}
	}
	t.owners[prefix] = owners
	return owners, nil
}

// describe fills the conda version and channels of the installation. A
// missing or broken conda binary leaves them empty.
func (t *Tracer) describe(ctx context.Context, dist *Distribution) error {
	out, _, err := t.sess.ExecuteCommand(ctx, []string{dist.condaBinary(), "info", "--json"}, t.opts.Exec)
	if err != nil {
		if _, ok := session.IsCommandError(err); ok && ctx.Err() == nil {
			logger.Logger().Debugf("conda info failed for %s: %v", dist.Path, err)
			return nil
		}
		return err
	}
	var info condaInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		logger.Logger().Warnf("unparseable conda info for %s: %v", dist.Path, err)
		return nil
	}
	dist.CondaVersion = info.CondaVersion
	dist.Channels = info.Channels
	return nil
}
