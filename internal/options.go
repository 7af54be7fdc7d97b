package internal

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// FileTypeRule describes which links count as a given file type.
type FileTypeRule struct {
	Pattern string   // regex source, matched case-insensitively
	MIME    []string // accepted MIME types, informational
}

// SecurityConfig - process-wide limits and rules. Immutable after Prepare.
type SecurityConfig struct {
	MaxDownloads      int
	DownloadDelay     time.Duration
	AllowedSchemes    []string
	MaxFilenameLength int
	BlockedExtensions []string
	FileTypes         map[string]FileTypeRule

	schemeSet  map[string]struct{}
	blockedSfx []string
	compiled   map[string]*regexp.Regexp
}

// DefaultSecurityConfig returns the built-in limits and file types.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		MaxDownloads:      50,
		DownloadDelay:     500 * time.Millisecond,
		AllowedSchemes:    []string{"http", "https"},
		MaxFilenameLength: 50,
		BlockedExtensions: []string{"exe", "bat", "cmd", "com", "scr", "vbs", "js", "msi"},
		FileTypes: map[string]FileTypeRule{
			"pdf":  {Pattern: `\.pdf(\?.*)?$`, MIME: []string{"application/pdf"}},
			"mp3":  {Pattern: `\.mp3(\?.*)?$`, MIME: []string{"audio/mpeg"}},
			"mp4":  {Pattern: `\.(mp4|webm|ogg|avi|mov)(\?.*)?$`, MIME: []string{"video/mp4", "video/webm"}},
			"docx": {Pattern: `\.(docx|doc)(\?.*)?$`, MIME: []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}},
			"jpg":  {Pattern: `\.(jpg|jpeg|png|gif|webp|svg)(\?.*)?$`, MIME: []string{"image/jpeg", "image/png"}},
			"zip":  {Pattern: `\.(zip|rar|7z|tar|gz)(\?.*)?$`, MIME: []string{"application/zip"}},
		},
	}
}

// Validate checks invariants.
func (c *SecurityConfig) Validate() error {
	if c.MaxDownloads <= 0 {
		return fmt.Errorf("max downloads must be positive, got %d", c.MaxDownloads)
	}
	if c.DownloadDelay < 0 {
		return fmt.Errorf("download delay must not be negative, got %s", c.DownloadDelay)
	}
	if len(c.AllowedSchemes) == 0 {
		return errors.New("at least one allowed scheme is required")
	}
	if c.MaxFilenameLength < 8 {
		return fmt.Errorf("max filename length too small: %d", c.MaxFilenameLength)
	}
	if len(c.FileTypes) == 0 {
		return errors.New("no file types configured")
	}
	for name, rule := range c.FileTypes {
		if err := validateRule(name, rule); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(name string, rule FileTypeRule) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("file type with empty name")
	}
	if !strings.HasSuffix(rule.Pattern, "$") {
		return fmt.Errorf("%w: %s: pattern %q is not anchored with $", ErrInvalidRule, name, rule.Pattern)
	}
	if _, err := compileInsensitive(rule.Pattern); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRule, name, err)
	}
	return nil
}

// Prepare builds lookup structures and compiles patterns. Call after Validate.
func (c *SecurityConfig) Prepare() {
	c.schemeSet = make(map[string]struct{}, len(c.AllowedSchemes))
	for _, s := range c.AllowedSchemes {
		s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ":")
		c.schemeSet[s] = struct{}{}
	}
	c.blockedSfx = make([]string, 0, len(c.BlockedExtensions))
	for _, ext := range c.BlockedExtensions {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext == "" {
			continue
		}
		c.blockedSfx = append(c.blockedSfx, "."+ext)
	}
	c.compiled = make(map[string]*regexp.Regexp, len(c.FileTypes))
	for name, rule := range c.FileTypes {
		if re, err := compileInsensitive(rule.Pattern); err == nil {
			c.compiled[name] = re
		}
	}
}

// TypeNames returns configured file type keys, sorted.
func (c *SecurityConfig) TypeNames() []string {
	names := make([]string, 0, len(c.FileTypes))
	for n := range c.FileTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *SecurityConfig) allowedScheme(scheme string) bool {
	_, ok := c.schemeSet[scheme]
	return ok
}
