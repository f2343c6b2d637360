package report

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ReadIndex reads a report.json file.
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	return &index, nil
}

// ReadCaseDetail reads a case detail file.
func ReadCaseDetail(path string) (*CaseDetail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c CaseDetail
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ReadReport reads the index and every case detail of a run directory.
func ReadReport(reportDir string) (*Index, []CaseDetail, error) {
	index, err := ReadIndex(filepath.Join(reportDir, IndexFile))
	if err != nil {
		return nil, nil, err
	}
	cases := make([]CaseDetail, len(index.Cases))
	for i, entry := range index.Cases {
		c, err := ReadCaseDetail(filepath.Join(reportDir, entry.DataFile))
		if err != nil {
			return nil, nil, err
		}
		cases[i] = *c
	}
	return index, cases, nil
}

// Recover closes a run left open by a crash: cases still running are marked
// failed and the summary and run status are recomputed.
func Recover(reportDir string) error {
	path := filepath.Join(reportDir, IndexFile)
	index, err := ReadIndex(path)
	if err != nil {
		return err
	}
	if index.Status.IsTerminal() {
		return nil
	}

	var s Summary
	for i := range index.Cases {
		c := &index.Cases[i]
		if !c.Status.IsTerminal() {
			c.Status = StatusFailed
			msg := "Run interrupted"
			c.Error = &msg
		}
		s.add(c.Status)
	}
	index.Summary = s
	index.Status = runStatus(s)
	if index.EndTime == nil {
		t := index.LastUpdated
		index.EndTime = &t
	}
	index.UpdateSeq++
	return atomicWriteJSON(path, index)
}
