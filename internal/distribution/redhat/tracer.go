package redhat

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/open-edge-platform/os-env-tracer/internal/session"
	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/logger"
	"github.com/open-edge-platform/os-env-tracer/internal/utils/system"
)

const (
	releaseFile = "/etc/redhat-release"

	ownerFormat  = "%{NAME}\\t%{ARCH}\\t%{VERSION}\\t%{RELEASE}\\t%{EPOCH}\\n"
	detailFormat = "%{NAME}\\t%{ARCH}\\t%{SIZE}\\t%{LICENSE}\\t%{SOURCERPM}\\t%{INSTALLTIME}\\n"
	notOwned     = "is not owned by any package"
	noneValue    = "(none)"
)

// Tracer attributes files to rpm packages.
type Tracer struct {
	sess session.Session
	opts tracer.BatchOptions
}

func NewTracer(sess session.Session, opts tracer.BatchOptions) *Tracer {
	return &Tracer{sess: sess, opts: opts}
}

func (t *Tracer) Name() string      { return Tag }
func (t *Tracer) HandlesDirs() bool { return false }

func (t *Tracer) IdentifyDistributions(ctx context.Context, files []string) ([]tracer.Result, error) {
	log := logger.Logger()

	version, ok, err := t.release(ctx)
	if err != nil || !ok {
		return nil, err
	}

	fieldsByFile, err := t.owners(ctx, files)
	if err != nil {
		if _, isCmd := session.IsCommandError(err); isCmd && ctx.Err() == nil {
			log.Debugf("rpm unavailable: %v", err)
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
	if err := t.details(ctx, packages); err != nil {
		return nil, err
	}

	dist := &Distribution{Name: Tag, Version: version, Packages: packages}
	dist.Normalize()
	return []tracer.Result{{Distribution: dist, Remaining: unknown}}, nil
}

// release returns the distribution release string, ok is false when the
// host is not of the Red Hat family.
func (t *Tracer) release(ctx context.Context) (string, bool, error) {
	content, err := t.sess.Read(ctx, releaseFile)
	if err == nil {
		return strings.TrimSpace(content), true, nil
	}
	if _, ok := session.IsCommandError(err); !ok || ctx.Err() != nil {
		return "", false, err
	}
	content, err = t.sess.Read(ctx, system.OsReleaseFile)
	if err != nil {
		if _, ok := session.IsCommandError(err); ok && ctx.Err() == nil {
			return "", false, nil
		}
		return "", false, err
	}
	fields, err := system.ParseOsRelease(content)
	if err != nil {
		return "", false, err
	}
	family := fields["ID"] + " " + fields["ID_LIKE"]
	for _, id := range []string{"rhel", "fedora", "centos"} {
		if strings.Contains(family, id) {
			return fields["PRETTY_NAME"], true, nil
		}
	}
	return "", false, nil
}

func newPackage(f tracer.Fields) (*Package, bool) {
	if f["name"] == "" {
		return nil, false
	}
	return &Package{
		Name: f["name"], Architecture: f["architecture"],
		Version: f["version"], Release: f["release"], Epoch: f["epoch"],
	}, true
}

func acceptNotOwned(e *session.CommandError) bool { return e.ExitCode == 1 }

// parseOwnerLine parses one ownerFormat line.
func parseOwnerLine(line string) (tracer.Fields, bool) {
	if strings.Contains(line, notOwned) || strings.HasPrefix(line, "error:") {
		return nil, false
	}
	cols := strings.Split(line, "\t")
	if len(cols) != 5 {
		return nil, false
	}
	if cols[4] == noneValue {
		cols[4] = ""
	}
	return tracer.Fields{
		"name": cols[0], "architecture": cols[1], "version": cols[2], "release": cols[3], "epoch": cols[4],
	}, true
}

// owners maps files to their rpm. rpm prints one line per owner, so a
// batch whose line count does not match its arguments is retried file by
// file and multiply owned files become ambiguous.
func (t *Tracer) owners(ctx context.Context, files []string) (map[string]tracer.Fields, error) {
	prefix := []string{"rpm", "-qf", "--queryformat", ownerFormat}
	opts := t.opts
	opts.Accept = acceptNotOwned
	results, err := tracer.Batch(ctx, t.sess, prefix, files, opts)
	if err != nil {
		return nil, err
	}

	attribution := tracer.NewAttribution(Tag)
	record := func(file string, out []string) {
		var claims []tracer.Fields
		for _, line := range out {
			if f, ok := parseOwnerLine(line); ok {
				claims = append(claims, f)
			}
		}
		switch len(claims) {
		case 0:
		case 1:
			attribution.Attribute(file, claims[0])
		default:
			attribution.MarkAmbiguous(file, claims...)
		}
	}

	for _, r := range results {
		out := nonEmptyLines(r.Stdout)
		if len(out) == len(r.Args) {
			for i, file := range r.Args {
				record(file, out[i:i+1])
			}
			continue
		}
		for _, file := range r.Args {
			stdout, _, err := t.sess.ExecuteCommand(ctx, append(append([]string{}, prefix...), file), t.opts.Exec)
			if err != nil {
				if cmdErr, ok := session.IsCommandError(err); !ok || !acceptNotOwned(cmdErr) || ctx.Err() != nil {
					return nil, err
				}
			}
			record(file, nonEmptyLines(stdout))
		}
	}
	return attribution.Resolve(), nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func (t *Tracer) details(ctx context.Context, packages []*Package) error {
	names := make([]string, len(packages))
	for i, p := range packages {
		names[i] = p.NEVRA()
	}
	opts := t.opts
	opts.Accept = func(*session.CommandError) bool { return true }
	results, err := tracer.Batch(ctx, t.sess, []string{"rpm", "-q", "--queryformat", detailFormat}, names, opts)
	if err != nil {
		return err
	}
	for _, r := range results {
		for _, line := range nonEmptyLines(r.Stdout) {
			cols := strings.Split(line, "\t")
			if len(cols) != 6 {
				continue
			}
			for _, p := range packages {
				if p.Name != cols[0] || p.Architecture != cols[1] {
					continue
				}
				p.Size = cols[2]
				p.License = cols[3]
				p.SourceRPM = cols[4]
				if sec, err := strconv.ParseInt(cols[5], 10, 64); err == nil {
					p.InstallDate = time.Unix(sec, 0).UTC().Format(time.RFC3339)
				}
			}
		}
	}
	return nil
}
