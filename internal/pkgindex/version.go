package pkgindex

import (
	"fmt"
	"regexp"
	"strconv"
)

// Version is a (major, minor) language or runtime version.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)`)

// ParseVersion reads the first "major.minor" in s, so "3.11.4",
// "go1.22.3" and "v20.11.0" all parse.
func ParseVersion(s string) (Version, bool) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor}, true
}

// Compare returns -1, 0 or +1 ordering v against o by major then minor.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		if v.Major < o.Major {
			return -1
		}
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

// InRange reports lo <= v <= hi. A nil hi is unbounded above.
func (v Version) InRange(lo Version, hi *Version) bool {
	if v.Compare(lo) < 0 {
		return false
	}
	return hi == nil || v.Compare(*hi) <= 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
