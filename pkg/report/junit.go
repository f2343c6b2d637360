package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GenerateJUnit reads the run in reportDir and writes junit-report.xml.
func GenerateJUnit(reportDir string) error {
	index, cases, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	xml := buildJUnitXML(index, cases)
	if err := os.WriteFile(filepath.Join(reportDir, JUnitFile), []byte(xml), 0o644); err != nil {
		return fmt.Errorf("write junit xml: %w", err)
	}
	return nil
}

// buildJUnitXML emits one testsuite per module, in first-seen order.
func buildJUnitXML(index *Index, cases []CaseDetail) string {
	var totalTime float64
	if index.EndTime != nil {
		totalTime = index.EndTime.Sub(index.StartTime).Seconds()
	}

	var modules []string
	byModule := make(map[string][]int)
	for i, e := range index.Cases {
		if _, ok := byModule[e.Module]; !ok {
			modules = append(modules, e.Module)
		}
		byModule[e.Module] = append(byModule[e.Module], i)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<testsuites name="droidprobe" tests="%d" failures="%d" skipped="%d" errors="0" time="%.3f">`+"\n",
		index.Summary.Total, index.Summary.Failed, index.Summary.Skipped, totalTime)

	timestamp := index.StartTime.Format(time.RFC3339)
	for _, mod := range modules {
		var s Summary
		var suiteTime float64
		for _, i := range byModule[mod] {
			e := index.Cases[i]
			s.add(e.Status)
			if e.Duration != nil {
				suiteTime += float64(*e.Duration) / 1000.0
			}
		}
		fmt.Fprintf(&b, `  <testsuite name="%s" tests="%d" failures="%d" skipped="%d" errors="0" time="%.3f" timestamp="%s">`+"\n",
			xmlEscape(mod), s.Total, s.Failed, s.Skipped, suiteTime, timestamp)
		for _, i := range byModule[mod] {
			var detail *CaseDetail
			if i < len(cases) {
				detail = &cases[i]
			}
			b.WriteString(buildTestCase(&index.Cases[i], detail, index))
		}
		b.WriteString("  </testsuite>\n")
	}
	b.WriteString("</testsuites>\n")
	return b.String()
}

func buildTestCase(entry *CaseEntry, detail *CaseDetail, index *Index) string {
	var tcTime float64
	if entry.Duration != nil {
		tcTime = float64(*entry.Duration) / 1000.0
	}

	var b strings.Builder
	fmt.Fprintf(&b, `    <testcase name="%s" classname="%s" time="%.3f">`+"\n",
		xmlEscape(entry.Name), xmlEscape(entry.Module), tcTime)

	b.WriteString("      <properties>\n")
	fmt.Fprintf(&b, `        <property name="log" value="%s"/>`+"\n", xmlEscape(entry.LogFile))
	if entry.LogcatFile != "" {
		fmt.Fprintf(&b, `        <property name="logcat" value="%s"/>`+"\n", xmlEscape(entry.LogcatFile))
	}
	if index.Serial != "" {
		fmt.Fprintf(&b, `        <property name="device.serial" value="%s"/>`+"\n", xmlEscape(index.Serial))
	}
	b.WriteString("      </properties>\n")

	switch entry.Status {
	case StatusFailed:
		msg := ""
		if entry.Error != nil {
			msg = *entry.Error
		}
		fmt.Fprintf(&b, `      <failure message="%s" type="%s">%s</failure>`+"\n",
			xmlEscape(firstLine(msg)), failureType(msg), xmlEscape(failureBody(msg, detail)))
	case StatusSkipped:
		msg := ""
		if entry.Error != nil {
			msg = *entry.Error
		}
		fmt.Fprintf(&b, `      <skipped message="%s"/>`+"\n", xmlEscape(msg))
	}
	if detail != nil && detail.Output != "" {
		fmt.Fprintf(&b, "      <system-out>%s</system-out>\n", xmlEscape(detail.Output))
	}
	b.WriteString("    </testcase>\n")
	return b.String()
}

// failureType classifies a failure message the way step failures are worded.
func failureType(msg string) string {
	switch {
	case strings.HasPrefix(msg, "panic:"):
		return "PanicError"
	case strings.Contains(msg, "timed out"):
		return "TimeoutError"
	case strings.HasPrefix(msg, "Expected '"), strings.HasPrefix(msg, "Unexpected '"):
		return "AssertionError"
	case strings.HasPrefix(msg, "ERROR"):
		return "CommandError"
	case strings.Contains(msg, "test(s) failed"):
		return "AggregateError"
	default:
		return "TestError"
	}
}

// failureBody is the full message, or the failing sub-cases of an aggregate.
func failureBody(msg string, detail *CaseDetail) string {
	if detail == nil || len(detail.Sub) == 0 {
		return msg
	}
	var lines []string
	for _, s := range detail.Sub {
		if s.Status == StatusFailed {
			lines = append(lines, s.Name+": "+s.Error)
		}
	}
	if len(lines) == 0 {
		return msg
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
