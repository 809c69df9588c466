package debian

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
)

const (
	versionFile = "/etc/debian_version"
	dpkgInfoDir = "/var/lib/dpkg/info"
)

// Tracer attributes files to dpkg packages. The APT source table lives as
// long as the tracer, so sources keep their names across rounds.
type Tracer struct {
	sess     session.Session
	opts     tracer.BatchOptions
	sources  *sourceTable
	releases map[releaseKey]map[string]string
}

// NewTracer returns a tracer running its queries through sess.
func NewTracer(sess session.Session, opts tracer.BatchOptions) *Tracer {
	return &Tracer{sess: sess, opts: opts, sources: newSourceTable()}
}

func (t *Tracer) Name() string      { return Tag }
func (t *Tracer) HandlesDirs() bool { return true }

func (t *Tracer) IdentifyDistributions(ctx context.Context, files []string) ([]tracer.Result, error) {
	log := logger.Logger()

	version, err := t.sess.Read(ctx, versionFile)
	if err != nil {
		if absent(ctx, err) {
			log.Debugf("%s not readable, not a Debian system", versionFile)
			return nil, nil
		}
		return nil, err
	}

	fieldsByFile, err := t.search(ctx, files)
	if err != nil {
		if absent(ctx, err) {
			log.Debugf("dpkg-query unavailable: %v", err)
			return nil, nil
		}
		return nil, err
	}

	packages, unknown, err := tracer.GroupFiles(ctx, t.sess, files, fieldsByFile, newPackage, "")
	if err != nil {
		return nil, err
	}
	if len(packages) == 0 {
		return nil, nil
	}
	log.Infof("%d files attributed to %d dpkg packages", len(files)-len(unknown), len(packages))

	if err := t.details(ctx, packages); err != nil {
		return nil, err
	}
	if err := t.origins(ctx, packages); err != nil {
		return nil, err
	}
	if err := t.checksums(ctx, packages); err != nil {
		return nil, err
	}
	if err := t.installDates(ctx, packages); err != nil {
		return nil, err
	}

	dist := &Distribution{
		Name:     Tag,
		Version:  strings.TrimSpace(version),
		Sources:  append([]*APTSource(nil), t.sources.list...),
		Packages: packages,
	}
	dist.Normalize()
	return []tracer.Result{{Distribution: dist, Remaining: unknown}}, nil
}

func newPackage(f tracer.Fields) (*Package, bool) {
	if f["name"] == "" {
		return nil, false
	}
	return &Package{Name: f["name"], Architecture: f["architecture"]}, true
}

// absent reports whether err means the tool or file is missing on the
// host rather than a transport failure.
func absent(ctx context.Context, err error) bool {
	_, ok := session.IsCommandError(err)
	return ok && ctx.Err() == nil
}

func (t *Tracer) batchOpts(accept func(*session.CommandError) bool) tracer.BatchOptions {
	o := t.opts
	o.Accept = accept
	return o
}

func acceptAny(*session.CommandError) bool { return true }

func (t *Tracer) search(ctx context.Context, files []string) (map[string]tracer.Fields, error) {
	accept := func(e *session.CommandError) bool {
		return e.ExitCode == 1 && strings.Contains(e.Stderr, noPathFound)
	}
	results, err := tracer.Batch(ctx, t.sess, []string{"dpkg-query", "-S"}, files, t.batchOpts(accept))
	if err != nil {
		return nil, err
	}
	queried := make(map[string]bool, len(files))
	for _, f := range files {
		queried[f] = true
	}
	attribution := tracer.NewAttribution(Tag)
	for _, r := range results {
		parseSearch(r.Stdout, queried, attribution)
	}
	return attribution.Resolve(), nil
}

func qualifiedNames(packages []*Package) []string {
	names := make([]string, len(packages))
	for i, p := range packages {
		names[i] = p.qualified()
	}
	return names
}

func (t *Tracer) details(ctx context.Context, packages []*Package) error {
	prefix := []string{"dpkg-query", "-W", "-f=" + statusFormat}
	results, err := tracer.Batch(ctx, t.sess, prefix, qualifiedNames(packages), t.batchOpts(acceptAny))
	if err != nil {
		return err
	}
	var records []statusRecord
	for _, r := range results {
		records = append(records, parseStatus(r.Stdout)...)
	}
	for _, p := range packages {
		for _, rec := range records {
			if rec.name != p.Name || (p.Architecture != "" && rec.arch != p.Architecture) {
				continue
			}
			p.Architecture = rec.arch
			p.Version = rec.version
			p.Source = rec.source
			p.InstalledSize = rec.installedSize
			break
		}
	}
	return nil
}

// origins attaches the APT sources offering each installed version. APT
// being absent only leaves packages without sources.
func (t *Tracer) origins(ctx context.Context, packages []*Package) error {
	log := logger.Logger()
	if t.releases == nil {
		out, _, err := t.sess.ExecuteCommand(ctx, []string{"apt-cache", "policy"}, t.opts.Exec)
		if err != nil {
			if absent(ctx, err) {
				log.Debugf("apt-cache policy failed, skipping sources: %v", err)
				return nil
			}
			return err
		}
		t.releases = parseReleases(out)
	}

	names := make([]string, len(packages))
	for i, p := range packages {
		names[i] = p.Name
	}
	results, err := tracer.Batch(ctx, t.sess, []string{"apt-cache", "policy"}, names, t.batchOpts(acceptAny))
	if err != nil {
		return err
	}
	byName := map[string][]releaseKey{}
	for _, r := range results {
		for name, keys := range parsePackagePolicy(r.Stdout) {
			byName[name] = append(byName[name], keys...)
		}
	}
	for _, p := range packages {
		for _, key := range byName[p.Name] {
			p.Sources = append(p.Sources, t.sources.intern(key, t.releases[key]).Name)
		}
	}
	return nil
}

func (t *Tracer) checksums(ctx context.Context, packages []*Package) error {
	var pins []string
	for _, p := range packages {
		if p.Version != "" {
			pins = append(pins, p.qualified()+"="+p.Version)
		}
	}
	if len(pins) == 0 {
		return nil
	}
	results, err := tracer.Batch(ctx, t.sess, []string{"apt-cache", "show"}, pins, t.batchOpts(acceptAny))
	if err != nil {
		return err
	}
	var stanzas []map[string]string
	for _, r := range results {
		stanzas = append(stanzas, parseControl(r.Stdout)...)
	}
	for _, p := range packages {
		for _, st := range stanzas {
			if st["Package"] != p.Name || st["Version"] != p.Version {
				continue
			}
			if arch := st["Architecture"]; arch != "" && arch != p.Architecture {
				continue
			}
			p.MD5Sum, p.SHA1, p.SHA256 = st["MD5sum"], st["SHA1"], st["SHA256"]
			break
		}
	}
	return nil
}

func (t *Tracer) installDates(ctx context.Context, packages []*Package) error {
	var lists []string
	for _, p := range packages {
		lists = append(lists, path.Join(dpkgInfoDir, p.Name+".list"))
		if p.Architecture != "" {
			lists = append(lists, path.Join(dpkgInfoDir, p.qualified()+".list"))
		}
	}
	results, err := tracer.Batch(ctx, t.sess, []string{"stat", "-c", "%Y %n"}, lists, t.batchOpts(acceptAny))
	if err != nil {
		return err
	}
	times := map[string]int64{}
	for _, r := range results {
		parsed, err := parseStat(r.Stdout)
		if err != nil {
			return err
		}
		for k, v := range parsed {
			times[k] = v
		}
	}
	for _, p := range packages {
		for _, list := range []string{p.qualified() + ".list", p.Name + ".list"} {
			if sec, ok := times[path.Join(dpkgInfoDir, list)]; ok {
				p.InstallDate = time.Unix(sec, 0).UTC().Format(time.RFC3339)
				break
			}
		}
	}
	return nil
}
