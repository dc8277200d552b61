package eventsource

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/tinytelemetry/pulse/internal/tcpserver"
)

func TestTCPSource_WrapsServer(t *testing.T) {
	t.Parallel()

	server := tcpserver.NewServer("127.0.0.1:0")
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src := NewTCPSource(server)
	t.Cleanup(src.Stop)

	if got := src.Name(); got != "tcp" {
		t.Errorf("Name = %q, want tcp", got)
	}

	conn, err := net.Dial("tcp", server.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	fmt.Fprintln(conn, `{"sender_email":"a@x.com"}`)

	select {
	case env := <-src.Lines():
		if env.Line == "" {
			t.Error("empty line forwarded")
		}
		if env.ReceivedAt.IsZero() {
			t.Error("envelope missing transport receipt stamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no line forwarded through source")
	}
}
