package export

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validJob() *Job {
	return &Job{
		EventID:  "evt-1",
		Mode:     ModeDownload,
		Module:   ModuleInsights,
		Type:     TypeResponseGeneration,
		SubType:  SubTypeFrequentAskedQuestions,
		UserID:   7,
		ClientID: 42,
	}
}

func TestJobValidate(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name    string
		mutate  func(*Job)
		wantErr string
	}
	cases := []testCase{
		{
			name:   "valid",
			mutate: func(*Job) {},
		},
		{
			name:    "missing_event_id",
			mutate:  func(j *Job) { j.EventID = "" },
			wantErr: "eventId",
		},
		{
			name:    "missing_client_id",
			mutate:  func(j *Job) { j.ClientID = 0 },
			wantErr: "clientId",
		},
		{
			name:    "missing_user_id",
			mutate:  func(j *Job) { j.UserID = 0 },
			wantErr: "user_id",
		},
		{
			name:    "missing_module",
			mutate:  func(j *Job) { j.Module = "" },
			wantErr: "module",
		},
		{
			name:    "missing_type",
			mutate:  func(j *Job) { j.Type = "" },
			wantErr: "type",
		},
		{
			name:    "missing_mode",
			mutate:  func(j *Job) { j.Mode = "" },
			wantErr: "mode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			job := validJob()
			tc.mutate(job)
			err := job.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			var de *Error
			require.True(t, errors.As(err, &de))
			assert.Equal(t, KindInvalidMessage, de.Kind)
		})
	}
}

func TestSplitValues(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SplitValues(""))
	assert.Equal(t, []string{"ANSWERED"}, SplitValues("ANSWERED"))
	assert.Equal(t, []string{"ANSWERED", "NO_INFORMATION", "PARTIAL"},
		SplitValues("ANSWERED#@#NO_INFORMATION#@#PARTIAL"))
}

func TestSplitRange(t *testing.T) {
	t.Parallel()

	start, end, ok := SplitRange("1746297000000#@#1748888999999")
	require.True(t, ok)
	assert.Equal(t, "1746297000000", start)
	assert.Equal(t, "1748888999999", end)

	_, _, ok = SplitRange("1746297000000")
	assert.False(t, ok)
	_, _, ok = SplitRange("")
	assert.False(t, ok)
	_, _, ok = SplitRange("a#@#b#@#c")
	assert.False(t, ok)
}

func TestFilterCondition(t *testing.T) {
	t.Parallel()

	var nilFilter *Filter
	_, ok := nilFilter.Condition("status")
	assert.False(t, ok)

	f := &Filter{Conditions: map[string]Condition{
		"status": {Field: "status", Data: "ANSWERED", Operation: "in"},
	}}
	c, ok := f.Condition("status")
	require.True(t, ok)
	assert.Equal(t, "ANSWERED", c.Data)
	_, ok = f.Condition("meta.created")
	assert.False(t, ok)
}

func TestJobDecodesProducerPayload(t *testing.T) {
	t.Parallel()

	raw := `{
		"eventId": "evt-9",
		"mode": "download",
		"module": "usageLogs",
		"type": "answer",
		"subType": "",
		"user_id": 11,
		"clientId": 3,
		"productId": 5,
		"pageFilter": {
			"conditions": {
				"meta.created": {"field": "meta.created", "data": "1746297000000#@#1748888999999", "operation": "between"}
			}
		}
	}`
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	require.NoError(t, job.Validate())
	assert.Equal(t, ModuleUsageLogs, job.Module)
	assert.Equal(t, 5, job.ProductID)
	c, ok := job.PageFilter.Condition("meta.created")
	require.True(t, ok)
	assert.Equal(t, "between", c.Operation)
}
