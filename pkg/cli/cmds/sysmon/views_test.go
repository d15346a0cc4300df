package sysmon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gos-rtos/gostool.go/pkg/sim"
	"github.com/gos-rtos/gostool.go/pkg/sysmon"
)

func TestTaskView(t *testing.T) {
	tasks := sim.DefaultTasks()
	v := NewTaskView(2, &tasks[2])
	assert.Equal(t, "0x8002", v.ID)
	assert.Equal(t, "app_task", v.Name)
	assert.Equal(t, "blocked", v.State)
	assert.Equal(t, "GOS_TASK_PRIVILEGED_USER", v.Privileges)
	assert.Equal(t, 0.34, v.CPUUsage)
	assert.Equal(t, 100.0, v.CPULimit)

	line := v.Line()
	assert.True(t, strings.HasPrefix(line, "  2 0x8002 app_task "), line)
	assert.Contains(t, line, "  0.34 000:00:00:00.000")
	assert.Contains(t, v.Details(), "Priority:          100 (original 100)")
}

func TestTaskVarView(t *testing.T) {
	v := NewTaskVarView(sysmon.TaskVariableData{
		State:     sysmon.TaskSleeping,
		Priority:  7,
		CSCounter: 1234,
		CPUUsage:  1250,
		CPUMax:    5000,
	})
	assert.Equal(t, "sleeping     7  12.50%  50.00%       1234 000:00:00:00.000", v.Line())
}

func TestParseIndex(t *testing.T) {
	testCases := []struct {
		args  []string
		index uint16
		err   string
	}{
		{args: []string{"3"}, index: 3},
		{args: []string{"0x10"}, index: 16},
		{args: nil, err: "INDEX required"},
		{args: []string{"x"}, err: "invalid INDEX"},
		{args: []string{"70000"}, err: "invalid INDEX"},
	}
	for _, tc := range testCases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			index, err := parseIndex(tc.args, 0)
			if tc.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.index, index)
		})
	}
}
