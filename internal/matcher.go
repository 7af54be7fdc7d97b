package internal

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Pattern - fast interface for link match.
type Pattern interface {
	Match(string) bool
	Desc() string // for logs
}

type RegexPattern struct{ re *regexp.Regexp }

func (p *RegexPattern) Match(s string) bool { return p.re.MatchString(s) }
func (p *RegexPattern) Desc() string        { return p.re.String() }

func compileInsensitive(src string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + src)
}

// CompileRule returns the case-insensitive matcher for a file type key.
func CompileRule(cfg *SecurityConfig, key string) (Pattern, error) {
	if re, ok := cfg.compiled[key]; ok {
		return &RegexPattern{re: re}, nil
	}
	rule, ok := cfg.FileTypes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownFileType, key, strings.Join(cfg.TypeNames(), ", "))
	}
	re, err := compileInsensitive(rule.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, key, err)
	}
	return &RegexPattern{re: re}, nil
}

// LoadFileTypes reads extra file type rules.
// Lines:
//
//	# comment
//	epub: \.epub(\?.*)?$ | application/epub+zip
//	txt: \.txt$
func LoadFileTypes(path string) (map[string]FileTypeRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules := make(map[string]FileTypeRule)
	sc := bufio.NewScanner(f)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%s:%d: expected 'name: pattern'", path, lineNum)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		pattern, mimes, _ := strings.Cut(rest, " | ")
		rule := FileTypeRule{Pattern: strings.TrimSpace(pattern)}
		for _, m := range strings.Split(mimes, ",") {
			if m = strings.TrimSpace(m); m != "" {
				rule.MIME = append(rule.MIME, m)
			}
		}
		if err := validateRule(name, rule); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
		rules[name] = rule
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	logrus.Debugf("Loaded %d file types from %s", len(rules), path)
	return rules, nil
}
