package bytestream

import (
	"net"
	"testing"
)

func TestNewSessionReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	sess := NewSession(client)
	defer sess.Close()

	go func() {
		buf := make([]byte, 5)
		n, _ := server.Read(buf)
		server.Write(buf[:n])
	}()

	if _, err := sess.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 5)
	n, err := sess.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("Read = %q, want %q", buf[:n], "hello")
	}
}

func TestNewSessionUnderlying(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	sess := NewSession(client)
	defer sess.Close()

	if sess.Underlying() != client {
		t.Error("Underlying() did not return the wrapped conn")
	}
}

func TestNewSessionCloseIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	sess := NewSession(client)
	if err := sess.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	// A second Close must not panic even though the metrics hook only
	// fires once.
	sess.Close()
}
