package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teemow/inboxreader/internal/logging"
	"github.com/teemow/inboxreader/internal/outlook"
)

const (
	recentLimit = 10
	sinceDays   = 7
	sinceLimit  = 20
	searchLimit = 10

	previewLength = 200
	dateLayout    = "2006-01-02 15:04:05"
	menuWidth     = 50
	listWidth     = 100
)

// Mailbox is the query surface the menu needs.
type Mailbox interface {
	ListRecent(ctx context.Context, limit int) ([]outlook.EmailRecord, error)
	ListUnread(ctx context.Context) ([]outlook.EmailRecord, error)
	ListSince(ctx context.Context, daysBack, limit int) ([]outlook.EmailRecord, error)
	Search(ctx context.Context, term string, limit int) ([]outlook.EmailRecord, error)
}

// Menu is the interactive read loop.
type Menu struct {
	mailbox  Mailbox
	in       *bufio.Reader
	out      io.Writer
	theme    Theme
	location *time.Location
	logger   *slog.Logger
}

// Option configures a Menu.
type Option func(*Menu)

// WithTheme sets the output theme. The default is PlainTheme.
func WithTheme(t Theme) Option {
	return func(m *Menu) { m.theme = t }
}

// WithLocation sets the zone dates are shown in. The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(m *Menu) { m.location = loc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Menu) { m.logger = l }
}

// NewMenu creates a menu reading choices from in and writing to out.
func NewMenu(mailbox Mailbox, in io.Reader, out io.Writer, opts ...Option) *Menu {
	m := &Menu{
		mailbox:  mailbox,
		in:       bufio.NewReader(in),
		out:      out,
		theme:    PlainTheme(),
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ask prints prompt and returns the trimmed answer. io.EOF is returned only
// when the input ended without an answer.
func (m *Menu) Ask(prompt string) (string, error) {
	fmt.Fprint(m.out, prompt)
	line, err := m.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Run shows the menu until the user exits or the input ends. It returns an
// error wrapping outlook.ErrTokenInvalid when the session must be renewed;
// other query errors are reported and the loop continues.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.printMenu()

		choice, err := m.Ask("Enter your choice (1-5): ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(m.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading choice: %w", err)
		}

		switch choice {
		case "1":
			err = m.show(ctx, "recent", "", func() ([]outlook.EmailRecord, error) {
				return m.mailbox.ListRecent(ctx, recentLimit)
			})
		case "2":
			err = m.show(ctx, "unread", "Total unread emails", func() ([]outlook.EmailRecord, error) {
				return m.mailbox.ListUnread(ctx)
			})
		case "3":
			err = m.show(ctx, "since", fmt.Sprintf("Total emails from last %d days", sinceDays), func() ([]outlook.EmailRecord, error) {
				return m.mailbox.ListSince(ctx, sinceDays, sinceLimit)
			})
		case "4":
			err = m.search(ctx)
		case "5":
			fmt.Fprintln(m.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(m.out, m.theme.paint(m.theme.failure, "Invalid choice. Please try again."))
		}
		if err != nil {
			return err
		}
	}
}

func (m *Menu) search(ctx context.Context) error {
	term, err := m.Ask("Enter search query (subject or sender): ")
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading search query: %w", err)
	}
	if term == "" {
		fmt.Fprintln(m.out, "Empty search query.")
		return nil
	}
	return m.show(ctx, "search", "Total search results", func() ([]outlook.EmailRecord, error) {
		return m.mailbox.Search(ctx, term, searchLimit)
	})
}

// show runs query and prints its records followed by an optional total.
func (m *Menu) show(ctx context.Context, name, totalLabel string, query func() ([]outlook.EmailRecord, error)) error {
	records, err := query()
	if err != nil {
		m.logger.DebugContext(ctx, "mailbox query failed", logging.Operation(name), logging.Err(err))
		if outlook.IsAuthError(err) {
			fmt.Fprintln(m.out, m.theme.paint(m.theme.failure, "Your session has expired. Run 'inboxreader login' to sign in again."))
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintln(m.out, m.theme.paint(m.theme.failure, fmt.Sprintf("Error retrieving emails: %v", err)))
		return nil
	}

	m.PrintRecords(records)
	if totalLabel != "" {
		fmt.Fprintf(m.out, "\n%s: %d\n", totalLabel, len(records))
	}
	return nil
}

func (m *Menu) printMenu() {
	rule := m.theme.paint(m.theme.rule, strings.Repeat("=", menuWidth))
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, m.theme.paint(m.theme.title, "Outlook Email Reader"))
	fmt.Fprintln(m.out, rule)
	fmt.Fprintf(m.out, "1. View recent emails (last %d)\n", recentLimit)
	fmt.Fprintln(m.out, "2. View unread emails")
	fmt.Fprintf(m.out, "3. View emails from last %d days\n", sinceDays)
	fmt.Fprintln(m.out, "4. Search emails")
	fmt.Fprintln(m.out, "5. Exit")
	fmt.Fprintln(m.out, rule)
}

// PrintRecords writes records in display order, numbered from 1.
func (m *Menu) PrintRecords(records []outlook.EmailRecord) {
	if len(records) == 0 {
		fmt.Fprintln(m.out, m.theme.paint(m.theme.muted, "No emails found."))
		return
	}

	t := m.theme
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, t.paint(t.rule, strings.Repeat("=", listWidth)))
	for i, r := range records {
		status := t.paint(t.read, "✓ Read")
		if !r.IsRead {
			status = t.paint(t.unread, "✗ Unread")
		}
		line := fmt.Sprintf("[%d] %s", i+1, status)
		if r.HasAttachments {
			line += " " + t.paint(t.attachment, "[📎 Attachments]")
		}

		fmt.Fprintf(m.out, "\n%s\n", line)
		fmt.Fprintf(m.out, "%s %s\n", t.paint(t.label, "From:"), formatSender(r))
		fmt.Fprintf(m.out, "%s %s\n", t.paint(t.label, "Subject:"), r.Subject)
		fmt.Fprintf(m.out, "%s %s\n", t.paint(t.label, "Date:"), r.Date.In(m.location).Format(dateLayout))
		fmt.Fprintf(m.out, "%s %s\n", t.paint(t.label, "Preview:"), t.paint(t.muted, Preview(r.BodyPreview)))
		fmt.Fprintln(m.out, t.paint(t.rule, strings.Repeat("-", listWidth)))
	}
}

func formatSender(r outlook.EmailRecord) string {
	if r.FromName == "" {
		return r.From
	}
	return fmt.Sprintf("%s <%s>", r.FromName, r.From)
}

// Preview flattens line breaks and truncates to 200 characters plus "...".
func Preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewLength]) + "..."
}
