package outlook

import (
	"encoding/json"
	"strings"
	"time"
)

// normalize converts each element of a Graph value array independently. It
// returns the records in input order and the number of elements skipped.
func normalize(items []json.RawMessage) ([]EmailRecord, int) {
	records := make([]EmailRecord, 0, len(items))
	skipped := 0
	for _, raw := range items {
		rec, ok := normalizeMessage(raw)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

// normalizeMessage requires a sender address and a parseable receive time.
// Everything else has a default.
func normalizeMessage(raw json.RawMessage) (EmailRecord, bool) {
	var msg graphMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return EmailRecord{}, false
	}
	if msg.From == nil || msg.From.EmailAddress == nil || strings.TrimSpace(msg.From.EmailAddress.Address) == "" {
		return EmailRecord{}, false
	}
	received, err := time.Parse(time.RFC3339, msg.ReceivedDateTime)
	if err != nil {
		return EmailRecord{}, false
	}

	rec := EmailRecord{
		From:     msg.From.EmailAddress.Address,
		FromName: msg.From.EmailAddress.Name,
		Subject:  NoSubject,
		Date:     received.UTC(),
	}
	if msg.Subject != nil && *msg.Subject != "" {
		rec.Subject = *msg.Subject
	}
	if msg.BodyPreview != nil {
		rec.BodyPreview = *msg.BodyPreview
	}
	if msg.IsRead != nil {
		rec.IsRead = *msg.IsRead
	}
	if msg.HasAttachments != nil {
		rec.HasAttachments = *msg.HasAttachments
	}
	return rec, true
}

// receivedSince drops records older than cutoff.
func receivedSince(records []EmailRecord, cutoff time.Time) []EmailRecord {
	kept := records[:0]
	for _, r := range records {
		if !r.Date.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}
