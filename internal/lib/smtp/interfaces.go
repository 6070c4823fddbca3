// Package smtp connects to the outgoing mail server.
package smtp

import "io"

// Client is the part of an SMTP session used to send one message.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}
