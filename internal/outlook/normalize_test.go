package outlook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawItems(t *testing.T, items ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(items))
	for _, s := range items {
		require.True(t, json.Valid([]byte(s)), "invalid fixture: %s", s)
		out = append(out, json.RawMessage(s))
	}
	return out
}

const validMessage = `{"from":{"emailAddress":{"address":"ok@contoso.com","name":"OK"}},"subject":"fine","receivedDateTime":"2024-01-15T09:00:00Z","bodyPreview":"hi","isRead":true,"hasAttachments":true}`

func TestNormalize_SkipsMalformed(t *testing.T) {
	tests := []struct {
		name string
		item string
	}{
		{"no from", `{"subject":"x","receivedDateTime":"2024-01-15T09:00:00Z"}`},
		{"null from", `{"from":null,"receivedDateTime":"2024-01-15T09:00:00Z"}`},
		{"no emailAddress", `{"from":{},"receivedDateTime":"2024-01-15T09:00:00Z"}`},
		{"no address", `{"from":{"emailAddress":{"name":"Anon"}},"receivedDateTime":"2024-01-15T09:00:00Z"}`},
		{"blank address", `{"from":{"emailAddress":{"address":"  "}},"receivedDateTime":"2024-01-15T09:00:00Z"}`},
		{"no date", `{"from":{"emailAddress":{"address":"a@b.c"}}}`},
		{"unparseable date", `{"from":{"emailAddress":{"address":"a@b.c"}},"receivedDateTime":"yesterday"}`},
		{"wrong field type", `{"from":{"emailAddress":{"address":"a@b.c"}},"receivedDateTime":"2024-01-15T09:00:00Z","isRead":"yes"}`},
		{"not an object", `"just a string"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, skipped := normalize(rawItems(t, validMessage, tt.item, validMessage))
			assert.Equal(t, 1, skipped)
			require.Len(t, records, 2)
			for _, r := range records {
				assert.Equal(t, "ok@contoso.com", r.From)
			}
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	records, skipped := normalize(rawItems(t,
		`{"from":{"emailAddress":{"address":"a@contoso.com"}},"receivedDateTime":"2024-01-15T09:00:00Z"}`,
		`{"from":{"emailAddress":{"address":"b@contoso.com"}},"receivedDateTime":"2024-01-15T09:00:00Z","subject":null,"bodyPreview":null,"isRead":null}`,
		`{"from":{"emailAddress":{"address":"c@contoso.com"}},"receivedDateTime":"2024-01-15T09:00:00Z","subject":""}`,
	))
	require.Zero(t, skipped)
	require.Len(t, records, 3)

	for _, r := range records {
		assert.Equal(t, NoSubject, r.Subject)
		assert.Empty(t, r.FromName)
		assert.Empty(t, r.BodyPreview)
		assert.False(t, r.IsRead)
		assert.False(t, r.HasAttachments)
	}
}

func TestNormalize_Fields(t *testing.T) {
	records, _ := normalize(rawItems(t,
		`{"from":{"emailAddress":{"address":"jane@contoso.com","name":"Jane Doe"}},"subject":"Q1 report","receivedDateTime":"2024-01-15T10:30:00+02:00","bodyPreview":"Numbers attached","isRead":true,"hasAttachments":true}`,
	))
	require.Len(t, records, 1)

	assert.Equal(t, EmailRecord{
		From:           "jane@contoso.com",
		FromName:       "Jane Doe",
		Subject:        "Q1 report",
		Date:           time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC),
		BodyPreview:    "Numbers attached",
		IsRead:         true,
		HasAttachments: true,
	}, records[0])
	assert.Equal(t, time.UTC, records[0].Date.Location())
}

func TestReceivedSince(t *testing.T) {
	cutoff := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	records := []EmailRecord{
		{Subject: "after", Date: cutoff.Add(time.Hour)},
		{Subject: "exact", Date: cutoff},
		{Subject: "before", Date: cutoff.Add(-time.Second)},
	}

	kept := receivedSince(records, cutoff)
	require.Len(t, kept, 2)
	assert.Equal(t, "after", kept[0].Subject)
	assert.Equal(t, "exact", kept[1].Subject)
}

func TestEmailRecordJSON(t *testing.T) {
	b, err := json.Marshal(EmailRecord{From: "a@b.c", Subject: "s", Date: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"a@b.c","from_name":"","subject":"s","date":"2024-01-15T09:00:00Z","body_preview":"","is_read":false,"has_attachments":false}`, string(b))
}
