package output

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

func TestOSCPublisherSendsDatagram(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	p := NewOSCPublisher("127.0.0.1", port, "/speech")
	err = p.Publish(context.Background(), transcribe.Transcript{Text: "buongiorno"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read udp: %v", err)
	}

	if !bytes.Contains(buf[:n], []byte("/speech")) {
		t.Error("datagram does not contain the OSC route")
	}
	if !bytes.Contains(buf[:n], []byte("buongiorno")) {
		t.Error("datagram does not contain the transcript text")
	}
}

func TestOSCPublisherDefaultRoute(t *testing.T) {
	p := NewOSCPublisher("127.0.0.1", 8080, "")
	if p.route != "/speech" {
		t.Errorf("route = %q, want /speech", p.route)
	}
}
