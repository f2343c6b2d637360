// Package modules holds the built-in device test modules. Each file registers
// one module with suite.Default from init.
package modules

import (
	"strings"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

func shell(args ...string) []string {
	return append([]string{"shell"}, args...)
}

// viewMedia opens a media file with the default player.
func viewMedia(path, mime string) []string {
	return shell("am", "start", "-a", "android.intent.action.VIEW", "-d", "file://"+path, "-t", mime)
}

// logcatSetup clears the device log before a case.
func logcatSetup(s *suite.State) {
	s.ClearLogcat()
}

// logcatTeardown saves the device log after a case.
func logcatTeardown(s *suite.State) {
	s.DumpLogcat(s.Name())
}

// shellGranted reports whether the shell package holds perm.
func shellGranted(s *suite.State, perm string) bool {
	out := s.Check("Check "+perm+" permission", shell("dumpsys", "package", "com.android.shell")...)
	return strings.Contains(out, "android.permission."+perm+": granted=true")
}

// passFail renders a boolean the way result files expect it.
func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

// stepCase is a case made of a single Step.
type stepCase struct {
	name string
	desc string
	args []string
}

func stepCases(opts []suite.StepOption, defs ...stepCase) []*suite.Case {
	out := make([]*suite.Case, 0, len(defs))
	for _, d := range defs {
		d := d
		out = append(out, &suite.Case{
			Name: d.name,
			Desc: d.desc,
			Func: func(s *suite.State) { s.Step(d.desc, d.args, opts...) },
		})
	}
	return out
}
