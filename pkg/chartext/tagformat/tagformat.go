// Package tagformat defines the pluggable image-tag parsing strategies
// that turn a chart's raw image tag into the structured
// {version, branch, commit, revision} fields HelmChart carries (spec.md
// §3; SPEC_FULL.md §C.2). Parsing itself runs in the out-of-scope
// chart-discovery worker; this package only gives that worker's output
// a well-typed, testable shape.
package tagformat

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Format names a tag-parsing strategy.
type Format string

const (
	// FormatSemver expects a tag like "v1.4.2" or "1.4.2-rc.1" and parses
	// it with Masterminds/semver/v3, the same library the teacher uses
	// for chart-version constraint checks.
	FormatSemver Format = "semver"

	// FormatBranchCommit expects "<branch>-<commit>", e.g.
	// "main-a1b2c3d".
	FormatBranchCommit Format = "branch-commit"

	// FormatDateRevision expects "<YYYYMMDD>-<revision>", e.g.
	// "20240115-42".
	FormatDateRevision Format = "date-revision"
)

// Parsed is the structured result of parsing an image tag: every field
// is optional since each Format only ever populates a subset.
type Parsed struct {
	Version  *string
	Branch   *string
	Commit   *string
	Revision *string
}

// Parse dispatches tag to the named format's parser.
func Parse(format Format, tag string) (Parsed, error) {
	switch format {
	case FormatSemver:
		return parseSemver(tag)
	case FormatBranchCommit:
		return parseBranchCommit(tag)
	case FormatDateRevision:
		return parseDateRevision(tag)
	default:
		return Parsed{}, errors.Errorf("unknown tag format %q", format)
	}
}

func parseSemver(tag string) (Parsed, error) {
	v, err := semver.NewVersion(tag)
	if err != nil {
		return Parsed{}, errors.Wrapf(err, "parsing %q as semver", tag)
	}
	version := v.String()
	out := Parsed{Version: &version}
	if meta := v.Metadata(); meta != "" {
		commit := meta
		out.Commit = &commit
	}
	return out, nil
}

var branchCommitPattern = regexp.MustCompile(`^(?P<branch>[A-Za-z0-9._/-]+)-(?P<commit>[0-9a-f]{7,40})$`)

func parseBranchCommit(tag string) (Parsed, error) {
	m := branchCommitPattern.FindStringSubmatch(tag)
	if m == nil {
		return Parsed{}, errors.Errorf("%q does not match <branch>-<commit>", tag)
	}
	branch, commit := m[1], m[2]
	return Parsed{Branch: &branch, Commit: &commit}, nil
}

var dateRevisionPattern = regexp.MustCompile(`^(?P<date>\d{8})-(?P<revision>\d+)$`)

func parseDateRevision(tag string) (Parsed, error) {
	m := dateRevisionPattern.FindStringSubmatch(tag)
	if m == nil {
		return Parsed{}, errors.Errorf("%q does not match <YYYYMMDD>-<revision>", tag)
	}
	date, revision := m[1], m[2]
	return Parsed{Version: &date, Revision: &revision}, nil
}
