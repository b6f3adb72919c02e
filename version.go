package py4go

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is the library version reported by the CLI.
const Version = "0.9.0"

// MinPythonVersion is the oldest interpreter the launcher accepts.
var MinPythonVersion = PythonVersion{Major: 3, Minor: 8, Patch: -1}

// PythonVersion is an interpreter version. Minor and Patch are -1 when
// absent.
type PythonVersion struct {
	Major int
	Minor int
	Patch int
}

// ParsePythonVersion parses the output of "python --version", e.g.
// "Python 3.11.4". Suffixes such as "rc1" or "+" are ignored.
func ParsePythonVersion(s string) (PythonVersion, error) {
	name, rest, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok || name != "Python" {
		return PythonVersion{}, errors.Errorf("not a python version: %q", s)
	}
	v := PythonVersion{Minor: -1, Patch: -1}
	fields := strings.SplitN(rest, ".", 3)
	targets := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, f := range fields {
		n, err := strconv.Atoi(leadingDigits(f))
		if err != nil {
			if i == 0 {
				return PythonVersion{}, errors.Errorf("not a python version: %q", s)
			}
			break
		}
		*targets[i] = n
	}
	return v, nil
}

func leadingDigits(s string) string {
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than
// other.
func (v PythonVersion) Compare(other PythonVersion) int {
	for _, d := range [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		switch {
		case d[0] < d[1]:
			return -1
		case d[0] > d[1]:
			return 1
		}
	}
	return 0
}

func (v PythonVersion) String() string {
	switch {
	case v.Patch >= 0:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	case v.Minor >= 0:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(v.Major)
}
