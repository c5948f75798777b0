package airplay

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRTSPReceiver answers every request with a bare 200 OK, enough to
// exercise ProbeFallback's OPTIONS/TEARDOWN round trip.
func fakeRTSPReceiver(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				reader := bufio.NewReader(c)
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					if strings.TrimSpace(line) == "" {
						continue
					}
					// Drain remaining headers for this request.
					for {
						h, err := reader.ReadString('\n')
						if err != nil || strings.TrimSpace(h) == "" {
							break
						}
					}
					c.Write([]byte("RTSP/1.0 200 OK\r\nCSeq: 1\r\n\r\n"))
				}
			}(conn)
		}
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

func TestProbeFallbackSucceedsAgainstRespondingReceiver(t *testing.T) {
	addr, stop := fakeRTSPReceiver(t)
	defer stop()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	target, err := ProbeFallback(ctx, host, port)
	require.NoError(t, err)
	require.Equal(t, host, target.Host)
	require.Equal(t, port, target.Port)
}

func TestProbeFallbackFailsAgainstUnreachableHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := ProbeFallback(ctx, "127.0.0.1", 1)
	require.Error(t, err)
}
