package github

import (
	"net/url"
	"strconv"
	"strings"
)

// PRRef identifies a pull request, optionally in another repository.
type PRRef struct {
	Owner  string
	Name   string
	Number int
}

// Repo returns "owner/name", or "" for the current repository.
func (r PRRef) Repo() string {
	if r.Owner == "" || r.Name == "" {
		return ""
	}
	return r.Owner + "/" + r.Name
}

// String returns the shortest unambiguous form of the reference.
func (r PRRef) String() string {
	if repo := r.Repo(); repo != "" {
		return repo + "#" + strconv.Itoa(r.Number)
	}
	return "#" + strconv.Itoa(r.Number)
}

// ParsePRReference recognizes an explicit PR reference: a GitHub pull URL,
// "owner/repo#N", "#N" or a bare number N.
func ParsePRReference(s string) (PRRef, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PRRef{}, false
	}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return parsePRURL(s)
	}

	if owner, rest, ok := strings.Cut(s, "/"); ok {
		name, num, ok := strings.Cut(rest, "#")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return PRRef{}, false
		}
		n, ok := parseNumber(num)
		if !ok {
			return PRRef{}, false
		}
		return PRRef{Owner: owner, Name: name, Number: n}, true
	}

	n, ok := parseNumber(strings.TrimPrefix(s, "#"))
	if !ok {
		return PRRef{}, false
	}
	return PRRef{Number: n}, true
}

// IsBareNumber reports whether s is "N" or "#N" rather than a qualified reference.
func IsBareNumber(s string) bool {
	ref, ok := ParsePRReference(s)
	return ok && ref.Repo() == ""
}

func parsePRURL(s string) (PRRef, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return PRRef{}, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != "pull" {
		return PRRef{}, false
	}
	n, ok := parseNumber(parts[3])
	if !ok {
		return PRRef{}, false
	}
	return PRRef{Owner: parts[0], Name: parts[1], Number: n}, true
}

func parseNumber(s string) (int, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
