// Package formatter renders the client-facing stream name and
// description from user templates.
package formatter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tomfle18/aiostreams/internal/expression"
	"github.com/tomfle18/aiostreams/internal/stream"
)

type Config struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// DefaultConfig mirrors the common addon layout: resolution-tagged
// name, emoji-annotated description.
var DefaultConfig = &Config{
	Name:        "{stream.addon} {stream.resolution::exists[{stream.resolution}||]} {stream.cached::exists[⚡||⏳]}{stream.type::=p2p[[P2P]||]}{stream.library::exists[☁️||]}",
	Description: "{stream.filename::exists[{stream.filename}||{stream.title}]}\n{stream.size::>0[💾 {stream.size::bytes}||]} {stream.seeders::>0[👤 {stream.seeders}||]} {stream.languages::exists[🔊 {stream.languages::join(, )}||]}",
}

// placeholder: {stream.PATH} or {stream.PATH::OP} or
// {stream.PATH::OP[TRUE||FALSE]}. Branch bodies may hold nested
// placeholders and one level of literal brackets.
var placeholderPattern = regexp.MustCompile(`\{stream\.([a-zA-Z]+)(?:::([^\[\{\}]+?))?(?:\[((?:[^\[\]]|\{[^\}]*\}|\[[^\[\]]*\])*?)\|\|((?:[^\[\]]|\{[^\}]*\}|\[[^\[\]]*\])*?)\])?\}`)

type Formatter struct {
	conf *Config
}

func New(conf *Config) *Formatter {
	if conf == nil || (conf.Name == "" && conf.Description == "") {
		conf = DefaultConfig
	}
	return &Formatter{conf: conf}
}

// Render produces the final name/description pair. The underlying
// stream record is never modified.
func (f *Formatter) Render(s *stream.ParsedStream) (name, description string) {
	if s.Type == stream.TypeError && s.Error != nil {
		return "[❌] " + s.Addon.Name, s.Error.Title + "\n" + s.Error.Description
	}
	env := expression.StreamEnv(s, nil)
	env["addon"] = s.Addon.Name
	name = strings.TrimSpace(render(f.conf.Name, env))
	description = strings.TrimSpace(render(f.conf.Description, env))
	if name == "" {
		name = s.OriginalName
	}
	if description == "" {
		description = s.OriginalDescription
	}
	return name, description
}

func render(template string, env map[string]any) string {
	// Two passes so branch bodies may themselves hold placeholders.
	out := renderOnce(template, env)
	return renderOnce(out, env)
}

func renderOnce(template string, env map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		groups := placeholderPattern.FindStringSubmatch(m)
		path, op, onTrue, onFalse := groups[1], groups[2], groups[3], groups[4]
		value := env[path]
		hasBranches := strings.Contains(m, "||")

		if op == "" {
			if hasBranches {
				if exists(value) {
					return onTrue
				}
				return onFalse
			}
			return stringify(value)
		}
		return applyOp(value, op, onTrue, onFalse, hasBranches)
	})
}

func applyOp(value any, op, onTrue, onFalse string, hasBranches bool) string {
	branch := func(matched bool) string {
		if !hasBranches {
			if matched {
				return stringify(value)
			}
			return ""
		}
		if matched {
			return onTrue
		}
		return onFalse
	}

	switch {
	case op == "exists":
		return branch(exists(value))
	case op == "bytes":
		return humanize.Bytes(uint64(toInt64(value)))
	case op == "time":
		return formatDuration(toInt64(value))
	case strings.HasPrefix(op, "join(") && strings.HasSuffix(op, ")"):
		sep := op[len("join(") : len(op)-1]
		items, _ := value.([]string)
		return strings.Join(items, sep)
	case strings.HasPrefix(op, "="):
		return branch(strings.EqualFold(stringify(value), op[1:]))
	case strings.HasPrefix(op, ">"):
		bound, err := strconv.ParseInt(strings.TrimSpace(op[1:]), 10, 64)
		if err != nil {
			return ""
		}
		return branch(toInt64(value) > bound)
	default:
		return ""
	}
}

func exists(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case []string:
		return len(v) > 0
	case []int:
		return len(v) > 0
	default:
		return true
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func formatDuration(seconds int64) string {
	if seconds <= 0 {
		return ""
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
