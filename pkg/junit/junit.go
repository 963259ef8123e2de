// Package junit converts JUnit XML reports into normalized test
// results. It is a format adapter: all statistical interpretation
// happens downstream.
package junit

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/store"
	"github.com/google/uuid"
)

// testSuites is the <testsuites> document root.
type testSuites struct {
	XMLName xml.Name    `xml:"testsuites"`
	Suites  []testSuite `xml:"testsuite"`
}

// testSuite is a single <testsuite> element, which may also be the
// document root.
type testSuite struct {
	Name      string     `xml:"name,attr"`
	Timestamp string     `xml:"timestamp,attr"`
	Cases     []testCase `xml:"testcase"`
}

// testCase is a single <testcase> element.
type testCase struct {
	ClassName string       `xml:"classname,attr"`
	Name      string       `xml:"name,attr"`
	Time      float64      `xml:"time,attr"`
	Failure   *caseOutcome `xml:"failure"`
	Error     *caseOutcome `xml:"error"`
	Skipped   *caseOutcome `xml:"skipped"`
}

// caseOutcome is a failure/error/skipped child element.
type caseOutcome struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// ParsedRun is the normalized output of one report file.
type ParsedRun struct {
	RunID   string
	Results []store.TestResult
}

// ParseFile parses a JUnit XML report into normalized results. An
// empty runID generates one. recordedAt is used as the observation
// timestamp unless the suite carries a parseable timestamp attribute.
func ParseFile(path, runID string, recordedAt time.Time) (*ParsedRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}

	return Parse(data, runID, recordedAt)
}

// Parse parses JUnit XML bytes. Both <testsuites> and a bare
// <testsuite> document root are accepted.
func Parse(data []byte, runID string, recordedAt time.Time) (*ParsedRun, error) {
	if runID == "" {
		runID = "run-" + uuid.NewString()
	}

	suites, err := decodeSuites(data)
	if err != nil {
		return nil, err
	}

	run := &ParsedRun{RunID: runID}

	for i := range suites {
		ts := suiteTimestamp(&suites[i], recordedAt)

		for j := range suites[i].Cases {
			run.Results = append(
				run.Results,
				convertCase(&suites[i].Cases[j], runID, ts),
			)
		}
	}

	return run, nil
}

// decodeSuites handles both accepted document roots.
func decodeSuites(data []byte) ([]testSuite, error) {
	var multi testSuites
	if err := xml.Unmarshal(data, &multi); err == nil {
		return multi.Suites, nil
	}

	var single testSuite
	if err := xml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing junit xml: %w", err)
	}

	return []testSuite{single}, nil
}

// suiteTimestamp parses the suite's timestamp attribute, falling back
// to the provided recording time.
func suiteTimestamp(suite *testSuite, fallback time.Time) time.Time {
	if suite.Timestamp == "" {
		return fallback
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, suite.Timestamp); err == nil {
			return ts
		}
	}

	return fallback
}

// convertCase maps one <testcase> to a normalized result. The test
// identity is the classname/name concatenation so it stays stable
// across runs.
func convertCase(tc *testCase, runID string, ts time.Time) store.TestResult {
	result := store.TestResult{
		TestID:          tc.ClassName + "." + tc.Name,
		RunID:           runID,
		Status:          store.StatusPass,
		DurationSeconds: tc.Time,
		Timestamp:       ts,
	}

	switch {
	case tc.Failure != nil:
		result.Status = store.StatusFail
		result.ErrorMessage = outcomeMessage(tc.Failure)
	case tc.Error != nil:
		result.Status = store.StatusError
		result.ErrorMessage = outcomeMessage(tc.Error)
	case tc.Skipped != nil:
		result.Status = store.StatusSkipped
	}

	return result
}

// outcomeMessage prefers the message attribute over the element body.
func outcomeMessage(o *caseOutcome) string {
	if o.Message != "" {
		return o.Message
	}

	return o.Body
}
