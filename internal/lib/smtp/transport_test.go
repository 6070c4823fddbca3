package smtp

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerspace/makeradmin/internal/config"
)

// fakeServer accepts one session and returns the DATA it received on the channel.
func fakeServer(t *testing.T) (host, port string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprint(conn, "220 fake ESMTP\r\n")
		sc := bufio.NewScanner(conn)
		var body []string
		inData := false
		for sc.Scan() {
			line := sc.Text()
			switch {
			case inData && line == ".":
				inData = false
				out <- strings.Join(body, "\n")
				fmt.Fprint(conn, "250 queued\r\n")
			case inData:
				body = append(body, line)
			case strings.HasPrefix(line, "EHLO"):
				fmt.Fprint(conn, "250-fake\r\n250 8BITMIME\r\n")
			case line == "DATA":
				inData = true
				fmt.Fprint(conn, "354 go ahead\r\n")
			case line == "QUIT":
				fmt.Fprint(conn, "221 bye\r\n")
				return
			default:
				fmt.Fprint(conn, "250 ok\r\n")
			}
		}
	}()
	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port, out
}

func TestTransport_ConnectAndSend(t *testing.T) {
	host, port, data := fakeServer(t)
	tr := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port, MailFrom: "info@makerspace.test"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "info@makerspace.test", tr.From())

	client, err := tr.Connect()
	require.NoError(t, err)
	require.NoError(t, client.Mail(tr.From()))
	require.NoError(t, client.Rcpt("anna@example.com"))
	w, err := client.Data()
	require.NoError(t, err)
	_, err = io.WriteString(w, "Subject: hi\r\n\r\nhello\r\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, client.Quit())

	assert.Contains(t, <-data, "hello")
}

func TestTransport_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	tr := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = tr.Connect()
	assert.ErrorContains(t, err, "smtp.Connect")
}
