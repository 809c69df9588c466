package debian

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/open-edge-platform/os-env-tracer/internal/tracer"
)

const noPathFound = "no path found matching pattern"

// statusFormat is the dpkg-query -W format parsed by parseStatus.
const statusFormat = "${Package}\\t${Architecture}\\t${Version}\\t${Source}\\t${Installed-Size}\\n"

func lines(s string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

func splitArch(qualified string) (name, arch string) {
	name, arch, _ = strings.Cut(qualified, ":")
	return name, arch
}

func packageFields(qualified string) tracer.Fields {
	name, arch := splitArch(strings.TrimSpace(qualified))
	return tracer.Fields{"name": name, "architecture": arch}
}

// parseSearch feeds dpkg-query -S output into a. Only paths in queried
// are considered. Diversions and lines naming several packages make a
// path ambiguous.
func parseSearch(out string, queried map[string]bool, a *tracer.Attribution) {
	for _, line := range lines(out) {
		owners, path, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		path = strings.TrimSpace(path)
		if !queried[path] {
			continue
		}
		if strings.HasPrefix(owners, "diversion by ") || strings.HasPrefix(owners, "local diversion") {
			a.MarkAmbiguous(path)
			continue
		}
		names := strings.Split(owners, ", ")
		if len(names) > 1 {
			fields := make([]tracer.Fields, 0, len(names))
			for _, n := range names {
				fields = append(fields, packageFields(n))
			}
			a.MarkAmbiguous(path, fields...)
			continue
		}
		a.Attribute(path, packageFields(owners))
	}
}

type statusRecord struct {
	name, arch, version, source, installedSize string
}

func parseStatus(out string) []statusRecord {
	var records []statusRecord
	for _, line := range lines(out) {
		cols := strings.Split(line, "\t")
		if len(cols) < 3 || cols[0] == "" {
			continue
		}
		for len(cols) < 5 {
			cols = append(cols, "")
		}
		source, _, _ := strings.Cut(cols[3], " ")
		records = append(records, statusRecord{
			name: cols[0], arch: cols[1], version: cols[2],
			source: source, installedSize: cols[4],
		})
	}
	return records
}

// releaseKey names one package index line of apt-cache policy, e.g.
// "http://deb.debian.org/debian bookworm/main amd64".
type releaseKey string

// parsePolicyIndexLine parses "500 http://site dist/component arch Packages".
func parsePolicyIndexLine(line string) (releaseKey, bool) {
	f := strings.Fields(line)
	if len(f) < 3 {
		return "", false
	}
	if _, err := strconv.Atoi(f[0]); err != nil {
		return "", false
	}
	key := f[1] + " " + f[2]
	if len(f) >= 5 {
		key += " " + f[3]
	}
	return releaseKey(key), true
}

// parseReleases parses apt-cache policy without arguments into the release
// attributes (o=, a=, n=, ...) of each package index.
func parseReleases(out string) map[releaseKey]map[string]string {
	releases := map[releaseKey]map[string]string{}
	var current releaseKey
	for _, line := range lines(out) {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "release "); ok && current != "" {
			attrs := map[string]string{}
			for _, kv := range strings.Split(rest, ",") {
				k, v, ok := strings.Cut(kv, "=")
				if ok {
					attrs[k] = v
				}
			}
			releases[current] = attrs
			continue
		}
		if key, ok := parsePolicyIndexLine(trimmed); ok {
			current = key
		} else if !strings.HasPrefix(trimmed, "origin ") {
			current = ""
		}
	}
	return releases
}

func indent(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// parsePackagePolicy parses apt-cache policy <pkg>... into the package
// indexes offering the installed version of each package.
func parsePackagePolicy(out string) map[string][]releaseKey {
	result := map[string][]releaseKey{}
	var (
		pkg, installed string
		inInstalled    bool
	)
	for _, line := range lines(out) {
		if line == "" {
			continue
		}
		if indent(line) == 0 {
			pkg, _ = splitArch(strings.TrimSuffix(line, ":"))
			installed, inInstalled = "", false
			continue
		}
		trimmed := strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(trimmed, "Installed:"); ok {
			installed = strings.TrimSpace(v)
			continue
		}
		if indent(line) >= 8 {
			if !inInstalled {
				continue
			}
			if key, ok := parsePolicyIndexLine(trimmed); ok && strings.Contains(string(key), "://") {
				result[pkg] = append(result[pkg], key)
			}
			continue
		}
		f := strings.Fields(strings.TrimPrefix(trimmed, "***"))
		if len(f) == 2 {
			inInstalled = f[0] == installed
		}
	}
	return result
}

// parseControl parses RFC 822 style stanzas such as apt-cache show output.
func parseControl(out string) []map[string]string {
	var (
		stanzas []map[string]string
		current map[string]string
		lastKey string
	)
	for _, line := range lines(out) {
		if strings.TrimSpace(line) == "" {
			current = nil
			continue
		}
		if current == nil {
			current = map[string]string{}
			stanzas = append(stanzas, current)
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if lastKey != "" {
				current[lastKey] += "\n" + strings.TrimSpace(line)
			}
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		lastKey = k
		current[k] = strings.TrimSpace(v)
	}
	return stanzas
}

// parseStat parses stat -c '%Y %n' output into modification times.
func parseStat(out string) (map[string]int64, error) {
	times := map[string]int64{}
	for _, line := range lines(out) {
		ts, path, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing stat line %q: %w", line, err)
		}
		times[path] = sec
	}
	return times, nil
}

// sourceTable interns package indexes as named APT sources.
type sourceTable struct {
	byKey map[releaseKey]*APTSource
	list  []*APTSource
}

func newSourceTable() *sourceTable {
	return &sourceTable{byKey: map[releaseKey]*APTSource{}}
}

func sanitize(s string) string {
	if s == "" {
		return "none"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, s)
}

// intern returns the source for key, creating it from release on first
// use.
func (t *sourceTable) intern(key releaseKey, release map[string]string) *APTSource {
	if s, ok := t.byKey[key]; ok {
		return s
	}
	f := strings.Fields(string(key))
	s := &APTSource{
		Origin:       release["o"],
		Label:        release["l"],
		Archive:      release["a"],
		Codename:     release["n"],
		Version:      release["v"],
		Component:    release["c"],
		Architecture: release["b"],
	}
	if len(f) > 0 {
		s.Site = f[0]
	}
	if s.Component == "" && len(f) > 1 {
		if _, comp, ok := strings.Cut(f[1], "/"); ok {
			s.Component = comp
		}
	}
	if s.Architecture == "" && len(f) > 2 {
		s.Architecture = f[2]
	}
	s.Name = fmt.Sprintf("apt_%s_%s_%s_%d",
		sanitize(s.Origin), sanitize(s.Archive), sanitize(s.Component), len(t.list))
	t.byKey[key] = s
	t.list = append(t.list, s)
	return s
}
