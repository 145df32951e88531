// Package manifest parses pip requirements files. Parsing is lenient: pip
// is the authority on whether a line resolves, so content never fails a
// parse and only an unreadable file is an error.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Requirement is a single package line.
type Requirement struct {
	Name      string `json:"name"` // PEP 503 normalised
	Specifier string `json:"specifier,omitempty"`
	Line      int    `json:"line"`
}

// Manifest is the parsed content of a requirements file.
type Manifest struct {
	Path         string        `json:"path"`
	Requirements []Requirement `json:"requirements"`
	// Options holds pip option lines such as "-r base.txt" or "--index-url ...".
	Options []string `json:"options,omitempty"`
	// Direct holds lines pip installs without a registry lookup (local
	// paths, archives, VCS and plain URLs) and anything else that does not
	// start with a project name. They are passed through untouched.
	Direct []Reference `json:"direct,omitempty"`
}

// Reference is a requirement line kept verbatim.
type Reference struct {
	Ref  string `json:"ref"`
	Line int    `json:"line"`
}

const bom = "\ufeff"

// archiveSuffixes are distribution files pip installs directly.
var archiveSuffixes = []string{".whl", ".tar.gz", ".tgz", ".tar.bz2", ".zip"}

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?`)
	separatorRunRe = regexp.MustCompile(`[-_.]+`)
)

// Load opens and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse reads requirements from r.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		pending   strings.Builder
		startLine int
		lineNo    int
	)
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if lineNo == 1 {
			raw = strings.TrimPrefix(raw, bom)
		}
		if pending.Len() == 0 {
			startLine = lineNo
		}

		if strings.HasSuffix(raw, `\`) {
			pending.WriteString(strings.TrimSuffix(raw, `\`))
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(raw)
		line := pending.String()
		pending.Reset()

		m.addLine(line, startLine)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", lineNo+1, err)
	}
	if pending.Len() > 0 {
		m.addLine(pending.String(), startLine)
	}
	return m, nil
}

func (m *Manifest) addLine(line string, lineNo int) {
	line = stripComment(line)
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "-") {
		m.Options = append(m.Options, line)
		return
	}

	name, rest, ok := splitNamed(line)
	if !ok {
		m.Direct = append(m.Direct, Reference{Ref: line, Line: lineNo})
		return
	}
	m.Requirements = append(m.Requirements, Requirement{
		Name:      NormalizeName(name),
		Specifier: rest,
		Line:      lineNo,
	})
}

// splitNamed splits a PEP 508 line into its project name and the rest.
// It reports false for paths, archives, URLs and anything whose name is
// not followed by extras, a version, a marker or "@ url".
func splitNamed(line string) (name, rest string, ok bool) {
	first := strings.Fields(line)[0]
	if strings.ContainsAny(first[:1], "./~\\") {
		return "", "", false
	}
	lower := strings.ToLower(first)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return "", "", false
		}
	}

	name = namePattern.FindString(line)
	if name == "" {
		return "", "", false
	}
	rest = strings.TrimSpace(line[len(name):])
	if rest != "" && !strings.ContainsAny(rest[:1], "[(<>=!~;@") {
		return "", "", false
	}
	return name, rest, true
}

// stripComment drops full-line comments and " #" inline comments. A '#'
// glued to a token (URL fragments like "#egg=") is kept.
func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	for i := 1; i < len(line); i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			return strings.TrimSpace(line[:i])
		}
	}
	return line
}

// NormalizeName applies PEP 503 normalisation.
func NormalizeName(name string) string {
	return strings.ToLower(separatorRunRe.ReplaceAllString(name, "-"))
}

// Names returns the normalised requirement names in file order.
func (m *Manifest) Names() []string {
	out := make([]string, 0, len(m.Requirements))
	for _, r := range m.Requirements {
		out = append(out, r.Name)
	}
	return out
}
