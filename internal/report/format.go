// Package report renders validation results as markdown, xlsx and terminal output.
// Rendering is a pure function of its inputs: no clock reads unless a timestamp is passed in.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Options controls report headers
type Options struct {
	Source    string    // input location shown in the header
	Generated time.Time // zero = no timestamp line
	Command   string    // footer attribution, e.g. "f1dq validate"
}

func (o Options) command(def string) string {
	if o.Command != "" {
		return o.Command
	}
	return def
}

// WriteFile writes content to path, creating parent directories
func WriteFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

const rule = "────────────────────────────────────────────────────────────"

func badge(passed bool) string {
	if passed {
		return "✅ PASS"
	}
	return "❌ FAIL"
}

// pctOf formats part/total as a percentage; "N/A" when total is 0
func pctOf(part, total int) string {
	if total == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}

// commas formats n with thousands separators
func commas(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func num(n int) string {
	return commas(int64(n))
}

// cell formats a query value: nil as a dash placeholder, integers with
// separators and floats with up to two decimals
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "—"
	case int64:
		return commas(x)
	case int:
		return commas(int64(x))
	case float64:
		s := strconv.FormatFloat(math.Abs(x), 'f', 2, 64)
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
		whole, frac, hasFrac := strings.Cut(s, ".")
		n, _ := strconv.ParseInt(whole, 10, 64)
		out := commas(n)
		if hasFrac {
			out += "." + frac
		}
		if x < 0 && out != "0" {
			out = "-" + out
		}
		return out
	case string:
		return escapeCell(x)
	default:
		return escapeCell(fmt.Sprint(x))
	}
}

// escapeCell keeps a value inside one markdown table cell
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "—"
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = "`" + it + "`"
	}
	return strings.Join(out, ", ")
}

// table renders a markdown table; align holds one of "l", "r", "c" per column
type table struct {
	header []string
	align  []string
	rows   [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(b *strings.Builder) {
	b.WriteString("| " + strings.Join(t.header, " | ") + " |\n")
	seps := make([]string, len(t.header))
	for i := range t.header {
		a := "l"
		if i < len(t.align) {
			a = t.align[i]
		}
		switch a {
		case "r":
			seps[i] = "---:"
		case "c":
			seps[i] = ":---:"
		default:
			seps[i] = "---"
		}
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	for _, r := range t.rows {
		b.WriteString("| " + strings.Join(r, " | ") + " |\n")
	}
}

// doc accumulates markdown lines
type doc struct {
	b strings.Builder
}

func (d *doc) line(format string, args ...any) {
	if len(args) == 0 {
		d.b.WriteString(format)
	} else {
		fmt.Fprintf(&d.b, format, args...)
	}
	d.b.WriteByte('\n')
}

// raw writes text verbatim, without format expansion
func (d *doc) raw(text string) {
	d.b.WriteString(text)
	d.b.WriteByte('\n')
}

func (d *doc) blank() {
	d.b.WriteByte('\n')
}

func (d *doc) table(t *table) {
	t.write(&d.b)
}

func (d *doc) String() string {
	return d.b.String()
}
