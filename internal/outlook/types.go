package outlook

import "time"

// NoSubject replaces an absent or empty subject.
const NoSubject = "[No Subject]"

// EmailRecord is the normalized projection of a Graph message
type EmailRecord struct {
	From           string    `json:"from"`
	FromName       string    `json:"from_name"`
	Subject        string    `json:"subject"`
	Date           time.Time `json:"date"`
	BodyPreview    string    `json:"body_preview"`
	IsRead         bool      `json:"is_read"`
	HasAttachments bool      `json:"has_attachments"`
}

// Profile identifies the signed-in user
type Profile struct {
	DisplayName string `json:"display_name"`
	Address     string `json:"address"`
}

// graphMessage mirrors the fields selected from a Graph message resource.
type graphMessage struct {
	From *struct {
		EmailAddress *struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"emailAddress"`
	} `json:"from"`
	Subject          *string `json:"subject"`
	ReceivedDateTime string  `json:"receivedDateTime"`
	BodyPreview      *string `json:"bodyPreview"`
	IsRead           *bool   `json:"isRead"`
	HasAttachments   *bool   `json:"hasAttachments"`
}

// graphUser is the subset of GET /me used by Me.
type graphUser struct {
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// graphErrorBody is the Graph error envelope.
type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
