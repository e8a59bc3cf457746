// Package console implements the interactive text menu of the read command.
//
// Menu choices:
//  1. recent messages (10)
//  2. unread messages, with a total
//  3. messages from the last 7 days (up to 20), with a total
//  4. subject or sender search (up to 10), with a total
//  5. exit
//
// Output is styled with lipgloss when it goes to a terminal and plain
// otherwise.
package console
