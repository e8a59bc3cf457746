package batch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringOrArray(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []string
		wantErr string
	}{
		{name: "single string", input: "invoice", want: []string{"invoice"}},
		{name: "single string trimmed", input: "  invoice ", want: []string{"invoice"}},
		{name: "array of strings", input: []any{"invoice", "travel", "payroll"}, want: []string{"invoice", "travel", "payroll"}},
		{name: "nil input", input: nil, wantErr: "query is required"},
		{name: "empty string", input: "", wantErr: "query cannot be empty"},
		{name: "blank string", input: "   ", wantErr: "query cannot be empty"},
		{name: "empty array", input: []any{}, wantErr: "query cannot be empty"},
		{name: "array with non-string", input: []any{"a", 123.0}, wantErr: "query[1] must be a string"},
		{name: "array with empty string", input: []any{"a", " "}, wantErr: "query[1] cannot be empty"},
		{name: "invalid type", input: 123, wantErr: "query must be a string or array of strings"},
		{name: "JSON string array", input: `["invoice", "travel"]`, want: []string{"invoice", "travel"}},
		{name: "JSON string empty array", input: `[]`, wantErr: "query cannot be empty"},
		{name: "invalid JSON string", input: `[invalid json`, want: []string{`[invalid json`}},
		{name: "string starting with bracket", input: `[ext] budget`, want: []string{`[ext] budget`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringOrArray(tt.input, "query")
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatResults(t *testing.T) {
	results := []Result{
		NewSuccessResult("invoice", []string{"a", "b"}),
		NewSuccessResult("travel", []string{}),
		NewErrorResult("payroll", errors.New("Token expired or invalid")),
	}

	var br BatchResult
	require.NoError(t, json.Unmarshal([]byte(FormatResults(results)), &br))

	assert.Equal(t, 3, br.Total)
	assert.Equal(t, 2, br.Successful)
	assert.Equal(t, 1, br.Failed)
	require.Len(t, br.Results, 3)
	assert.Equal(t, "Token expired or invalid", br.Results[2].Error)
	assert.Nil(t, br.Results[2].Result)
}

func TestProcessBatch(t *testing.T) {
	fn := func(_ context.Context, id string) (any, error) {
		if id == "id2" {
			return nil, errors.New("failed to process id2")
		}
		return "processed " + id, nil
	}

	results := ProcessBatch(context.Background(), []string{"id1", "id2", "id3"}, fn)

	require.Len(t, results, 3)
	assert.Equal(t, NewSuccessResult("id1", "processed id1"), results[0])
	assert.Equal(t, Result{ID: "id2", Status: StatusError, Error: "failed to process id2"}, results[1])
	assert.Equal(t, NewSuccessResult("id3", "processed id3"), results[2])
}

func TestProcessBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fn := func(_ context.Context, id string) (any, error) {
		calls++
		cancel()
		return id, nil
	}

	results := ProcessBatch(ctx, []string{"a", "b", "c"}, fn)

	assert.Equal(t, 1, calls)
	require.Len(t, results, 3)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Equal(t, context.Canceled.Error(), results[2].Error)
}

func TestNewResults(t *testing.T) {
	ok := NewSuccessResult("test-id", "test message")
	assert.Equal(t, Result{ID: "test-id", Status: StatusSuccess, Result: "test message"}, ok)

	failed := NewErrorResult("test-id", errors.New("test error"))
	assert.Equal(t, Result{ID: "test-id", Status: StatusError, Error: "test error"}, failed)
}
