// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/kegbrew/kegbrew/pkg/formula"
)

// hostEnvKeys are the only host variables a build sees.
var hostEnvKeys = []string{"PATH", "HOME", "TMPDIR", "LANG", "LC_ALL", "USER", "TERM"}

// HostEnv returns the allow-listed host variables as KEY=value pairs.
func HostEnv(getenv func(string) string) []string {
	var out []string
	for _, k := range hostEnvKeys {
		if v := getenv(k); v != "" {
			out = append(out, k+"="+v)
		}
	}
	return out
}

// environment is the variable set every step of job starts from.
func (j *Job) environment(buildPath string) []string {
	keg := j.KegPath
	env := newEnvList(j.BaseEnv)

	var depBins []string
	names := make([]string, 0, len(j.Deps))
	for name := range j.Deps {
		names = append(names, string(name))
	}
	slices.Sort(names)
	for _, name := range names {
		p := j.Deps[formula.Name(name)]
		env.set("DEP_"+envName(name), p)
		depBins = append(depBins, filepath.Join(p, "bin"))
	}
	if len(depBins) > 0 {
		path := strings.Join(depBins, string(filepath.ListSeparator))
		if cur := env.get("PATH"); cur != "" {
			path += string(filepath.ListSeparator) + cur
		}
		env.set("PATH", path)
	}

	env.set("PREFIX", keg)
	env.set("BIN", filepath.Join(keg, "bin"))
	env.set("LIB", filepath.Join(keg, "lib"))
	env.set("INCLUDE", filepath.Join(keg, "include"))
	env.set("SHARE", filepath.Join(keg, "share"))
	env.set("MAN1", filepath.Join(keg, "share", "man", "man1"))
	env.set("ETC", filepath.Join(keg, "etc"))
	env.set("BUILDPATH", buildPath)
	env.set("NAME", string(j.Formula.Name))
	env.set("VERSION", j.Version)
	env.set("STD_CMAKE_ARGS", strings.Join([]string{
		"-DCMAKE_INSTALL_PREFIX=" + keg,
		"-DCMAKE_INSTALL_LIBDIR=lib",
		"-DCMAKE_BUILD_TYPE=Release",
		"-DCMAKE_FIND_FRAMEWORK=LAST",
		"-DCMAKE_VERBOSE_MAKEFILE=ON",
		"-Wno-dev",
		"-DBUILD_TESTING=OFF",
	}, " "))
	env.set("STD_CARGO_ARGS", "--locked --root="+keg+" --path=.")
	env.set("KEG_OS", string(j.Fingerprint.OS))
	env.set("KEG_OS_VERSION", j.Fingerprint.OSVersion)
	env.set("KEG_ARCH", string(j.Fingerprint.Arch))
	env.set("KEG_COMPILER", string(j.Fingerprint.Compiler.Family))
	return env.list()
}

// envList is an ordered KEY=value list where set replaces in place.
type envList struct {
	keys []string
	vals map[string]string
}

func newEnvList(pairs []string) *envList {
	e := &envList{vals: make(map[string]string)}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			e.set(k, v)
		}
	}
	return e
}

func (e *envList) set(k, v string) {
	if _, ok := e.vals[k]; !ok {
		e.keys = append(e.keys, k)
	}
	e.vals[k] = v
}

func (e *envList) get(k string) string { return e.vals[k] }

func (e *envList) list() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.vals[k])
	}
	return out
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
