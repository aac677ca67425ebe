package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Profile is the optional per-book configuration: which header and
// footer lines to strip from reference text, how renderings tag the
// chapter marker, the duplicate significance threshold, and the
// chapter-to-page map.
type Profile struct {
	PageNumberPatterns    []string      `yaml:"page_number_patterns"`
	RunningHeaderPatterns []string      `yaml:"running_header_patterns"`
	ChapterMarkerClass    string        `yaml:"chapter_marker_class"`
	MinDuplicateLen       int           `yaml:"min_duplicate_len"`
	Chapters              []ChapterSpec `yaml:"chapters"`
}

// ChapterSpec maps one chapter unit onto its page range in the source.
type ChapterSpec struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Pages [2]int `yaml:"pages"` // first and last page, inclusive
}

// DefaultProfile is the built-in profile used when no file is given.
func DefaultProfile() Profile {
	return Profile{
		ChapterMarkerClass: "chapter-title",
		MinDuplicateLen:    50,
	}
}

// LoadProfile reads a YAML profile. Empty fields keep their defaults.
// Patterns must compile: a bad pattern is a startup error, not a runtime
// surprise. Patterns match whole normalized (lowercased) lines.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	var in Profile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return p, fmt.Errorf("parse profile: %w", err)
	}
	if len(in.PageNumberPatterns) > 0 {
		p.PageNumberPatterns = in.PageNumberPatterns
	}
	if len(in.RunningHeaderPatterns) > 0 {
		p.RunningHeaderPatterns = in.RunningHeaderPatterns
	}
	if in.ChapterMarkerClass != "" {
		p.ChapterMarkerClass = in.ChapterMarkerClass
	}
	if in.MinDuplicateLen > 0 {
		p.MinDuplicateLen = in.MinDuplicateLen
	}
	p.Chapters = in.Chapters

	for _, pat := range p.PageNumberPatterns {
		if _, err := regexp.Compile(pat); err != nil {
			return p, fmt.Errorf("profile page number pattern %q: %w", pat, err)
		}
	}
	for _, pat := range p.RunningHeaderPatterns {
		if _, err := regexp.Compile(pat); err != nil {
			return p, fmt.Errorf("profile running header pattern %q: %w", pat, err)
		}
	}
	for i, ch := range p.Chapters {
		if ch.ID == "" {
			return p, fmt.Errorf("profile chapter %d: id is required", i)
		}
		if ch.Pages[0] > 0 && ch.Pages[1] > 0 && ch.Pages[1] < ch.Pages[0] {
			return p, fmt.Errorf("profile chapter %s: page range %d-%d is inverted", ch.ID, ch.Pages[0], ch.Pages[1])
		}
	}
	return p, nil
}

// Chapter finds a chapter spec by ID.
func (p Profile) Chapter(id string) (ChapterSpec, bool) {
	for _, ch := range p.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChapterSpec{}, false
}
