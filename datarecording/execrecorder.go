package datarecording

import (
	"os"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05.000000000"

// ExecInfo is a property of a simulation run.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records how a simulation was run into the exec_info table.
type ExecRecorder struct {
	tableName string
	recorder  DataRecorder
	entries   []ExecInfo
}

// NewExecRecorder creates an ExecRecorder that writes to recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	e := &ExecRecorder{
		tableName: "exec_info",
		recorder:  recorder,
	}

	recorder.CreateTable(e.tableName, ExecInfo{})

	return e
}

// Start records the start time, the command, and the working directory.
func (e *ExecRecorder) Start() {
	e.Add("Start Time", time.Now().Format(timeLayout))
	e.Add("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err == nil {
		e.Add("Working Directory", cwd)
	}
}

// Add records an extra property of the run.
func (e *ExecRecorder) Add(property, value string) {
	e.entries = append(e.entries, ExecInfo{Property: property, Value: value})
}

// End writes all the properties together with the end time.
func (e *ExecRecorder) End() {
	e.Add("End Time", time.Now().Format(timeLayout))

	for _, entry := range e.entries {
		e.recorder.InsertData(e.tableName, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
