package modules

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/droidprobe/pkg/suite"
)

// command is one adb invocation recorded under its own id.
type command struct {
	ID   string
	Args []string
}

// tableCase is a test case made of one or more recorded commands.
type tableCase struct {
	ID       string
	Desc     string
	Commands []command
}

// single builds a one-command case whose command shares the case id.
func single(id, desc string, args ...string) tableCase {
	return tableCase{ID: id, Desc: desc, Commands: []command{{ID: id, Args: args}}}
}

// commandTable turns a list of recorded commands into suite cases. Every
// command writes <LogDir>/<id>.txt, a logcat dump under <ADBLogDir> and a
// row in Report.
type commandTable struct {
	Report    string
	LogDir    string
	ADBLogDir string
	Rows      []tableCase
}

var tableHeader = []string{"Test Case ID", "Result", "Timestamp"}

func caseName(id string) string {
	return "test_" + strings.ToLower(id)
}

func (t commandTable) cases() []*suite.Case {
	out := make([]*suite.Case, 0, len(t.Rows))
	for _, row := range t.Rows {
		row := row
		desc := row.ID
		if row.Desc != "" {
			desc = row.ID + " " + row.Desc
		}
		out = append(out, &suite.Case{
			Name: caseName(row.ID),
			Desc: desc,
			Func: func(s *suite.State) { t.run(s, row) },
		})
	}
	return out
}

func (t commandTable) run(s *suite.State, row tableCase) {
	s.Printf("▶ Running %s ...\n", row.ID)
	for _, cmd := range row.Commands {
		if !t.record(s, cmd) {
			s.Errorf("%s failed", cmd.ID)
		}
	}
}

// record runs cmd, writes its log and CSV row and reports success by exit code.
func (t commandTable) record(s *suite.State, cmd command) bool {
	ts := s.Now().Format("2006-01-02 15:04:05")
	s.ClearLogcat()

	s.Logf("[COMMAND] adb %s", strings.Join(cmd.Args, " "))
	res := s.ADB().Exec(s.Ctx(), cmd.Args...)
	ok := res.OK()

	var b strings.Builder
	fmt.Fprintf(&b, "Test Case: %s\nCommand: adb %s\nTimestamp: %s\n", cmd.ID, strings.Join(cmd.Args, " "), ts)
	if ok {
		b.WriteString("Status: PASS\nOutput:\n" + res.Stdout)
	} else {
		errOut := res.Stderr
		if errOut == "" {
			errOut = res.Text()
		}
		b.WriteString("Status: FAIL\nError Output:\n" + errOut)
	}
	s.WriteFile(filepath.Join(t.LogDir, cmd.ID+".txt"), b.String())
	s.SaveLogcat(filepath.Join(t.ADBLogDir, cmd.ID+"_adb.txt"))
	s.AppendCSV(t.Report, tableHeader, []string{cmd.ID, passFail(ok), ts})
	s.Logf("[OUTPUT] %s", res.Text())
	return ok
}
