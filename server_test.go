package wiremsg

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// testFormat is the two-field layout the transport tests exchange.
func testFormat(t *testing.T) *MessageFormat {
	t.Helper()
	return mustFormat(t, UintField(2), IntField(1))
}

// received tags a delivered message with the connection it arrived on.
type received struct {
	addr string
	msg  Message
}

// fastOptions keeps test shutdown latency low.
func fastOptions(sink chan received) []Option {
	opts := []Option{PollIntervalOption(time.Millisecond * 20)}
	if sink != nil {
		opts = append(opts, OnMessageOption(func(addr string, msg Message) {
			sink <- received{addr: addr, msg: msg}
		}))
	}
	return opts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond * 10)
	}
}

func recvMsg(t *testing.T, sink chan received) received {
	t.Helper()
	select {
	case r := <-sink:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
		return received{}
	}
}

func TestServer_RunEphemeral(t *testing.T) {
	server := NewServer(testFormat(t), fastOptions(nil)...)

	addr, err := server.Run("")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if addr == "" {
		t.Error("Run returned an empty address")
	}
	if server.ListenAddr() != addr {
		t.Errorf("ListenAddr() = %q, want %q", server.ListenAddr(), addr)
	}

	if err := server.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if server.ListenAddr() != "" {
		t.Error("ListenAddr should be empty after Stop")
	}
}

func TestServer_Run_InvalidAddr(t *testing.T) {
	server := NewServer(testFormat(t))

	_, err := server.Run("not an address")

	var parseErr *AddrParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected AddrParseError, got %v", err)
	}
	if parseErr.Addr != "not an address" {
		t.Errorf("Addr = %q, want the offending string", parseErr.Addr)
	}
}

func TestServer_Run_Twice(t *testing.T) {
	server := NewServer(testFormat(t), fastOptions(nil)...)

	if _, err := server.Run(""); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer server.Stop()

	if _, err := server.Run(""); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestServer_Stop_NotRunning(t *testing.T) {
	server := NewServer(testFormat(t))

	if err := server.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestClient_Run_InvalidAddr(t *testing.T) {
	client := NewClient(testFormat(t))

	_, err := client.Run("", "nowhere")

	var parseErr *AddrParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected AddrParseError, got %v", err)
	}
}

func TestClient_Run_ConnectionRefused(t *testing.T) {
	client := NewClient(testFormat(t))

	// An address nothing listens on: bind a listener, close it, reuse it.
	server := NewServer(testFormat(t), fastOptions(nil)...)
	addr, err := server.Run("")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if _, err := client.Run("", addr); err == nil {
		client.Stop()
		t.Fatal("expected connection error")
	}
}

func TestClient_SendMsg_NotConnected(t *testing.T) {
	client := NewClient(testFormat(t))

	err := client.SendMsg(Message{Uint(1), Int(2)})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_Stop_NotRunning(t *testing.T) {
	client := NewClient(testFormat(t))

	if err := client.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestServer_SendMsg_NoSuchClient(t *testing.T) {
	server := NewServer(testFormat(t), fastOptions(nil)...)

	if _, err := server.Run(""); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	defer server.Stop()

	err := server.SendMsg("10.0.0.1:12345", Message{Uint(1), Int(2)})

	var noClient *NoSuchClientError
	if !errors.As(err, &noClient) {
		t.Fatalf("expected NoSuchClientError, got %v", err)
	}
	if noClient.Addr != "10.0.0.1:12345" {
		t.Errorf("Addr = %q, want the looked-up address", noClient.Addr)
	}
}

func TestSendMsg_BothDirections(t *testing.T) {
	format := testFormat(t)
	serverSink := make(chan received, 4)
	clientSink := make(chan received, 4)

	server := NewServer(format, fastOptions(serverSink)...)
	serverAddr, err := server.Run("")
	if err != nil {
		t.Fatalf("server Run failed: %v", err)
	}
	defer server.Stop()

	if server.ClientLen() != 0 {
		t.Fatalf("ClientLen = %d before any connection, want 0", server.ClientLen())
	}

	client := NewClient(format, fastOptions(clientSink)...)
	clientAddr, err := client.Run("", serverAddr)
	if err != nil {
		t.Fatalf("client Run failed: %v", err)
	}
	defer client.Stop()

	if client.BindAddr() != clientAddr {
		t.Errorf("BindAddr() = %q, want %q", client.BindAddr(), clientAddr)
	}

	waitFor(t, "client registration", func() bool { return server.ClientLen() == 1 })

	// Client to server.
	sent := Message{Uint(255), Int(7)}
	if err := client.SendMsg(sent); err != nil {
		t.Fatalf("client SendMsg failed: %v", err)
	}

	got := recvMsg(t, serverSink)
	if !reflect.DeepEqual(got.msg, sent) {
		t.Errorf("server received %v, want %v", got.msg, sent)
	}
	if got.addr != clientAddr {
		t.Errorf("server saw peer %q, want the client's local address %q", got.addr, clientAddr)
	}

	// Server back to that client, addressed by its observed address.
	reply := Message{Uint(0), Int(-8)}
	if err := server.SendMsg(clientAddr, reply); err != nil {
		t.Fatalf("server SendMsg failed: %v", err)
	}

	if got := recvMsg(t, clientSink); !reflect.DeepEqual(got.msg, reply) {
		t.Errorf("client received %v, want %v", got.msg, reply)
	}
}

func TestSendMsg_OrderPreserved(t *testing.T) {
	format := testFormat(t)
	sink := make(chan received, 16)

	server := NewServer(format, fastOptions(sink)...)
	serverAddr, err := server.Run("")
	if err != nil {
		t.Fatalf("server Run failed: %v", err)
	}
	defer server.Stop()

	client := NewClient(format, fastOptions(nil)...)
	if _, err := client.Run("", serverAddr); err != nil {
		t.Fatalf("client Run failed: %v", err)
	}
	defer client.Stop()

	for i := 0; i < 10; i++ {
		if err := client.SendMsg(Message{Uint(uint64(i)), Int(int64(i))}); err != nil {
			t.Fatalf("SendMsg %d failed: %v", i, err)
		}
	}

	for i := 0; i < 10; i++ {
		got := recvMsg(t, sink)
		if got.msg[0] != Uint(uint64(i)) {
			t.Fatalf("message %d arrived as %v", i, got.msg)
		}
	}
}

func TestQueuedMessagesSurviveStop(t *testing.T) {
	format := testFormat(t)
	sink := make(chan received, 4)

	server := NewServer(format, fastOptions(sink)...)
	serverAddr, err := server.Run("")
	if err != nil {
		t.Fatalf("server Run failed: %v", err)
	}
	defer server.Stop()

	client := NewClient(format, fastOptions(nil)...)
	if _, err := client.Run("", serverAddr); err != nil {
		t.Fatalf("client Run failed: %v", err)
	}

	// Queue then stop immediately: the writer drains the queue before the
	// connection goes down.
	sent := Message{Uint(4242), Int(-1)}
	if err := client.SendMsg(sent); err != nil {
		t.Fatalf("SendMsg failed: %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := recvMsg(t, sink); !reflect.DeepEqual(got.msg, sent) {
		t.Errorf("server received %v, want %v", got.msg, sent)
	}
}

func TestServer_Stop_ClearsClients(t *testing.T) {
	format := testFormat(t)

	server := NewServer(format, fastOptions(nil)...)
	serverAddr, err := server.Run("")
	if err != nil {
		t.Fatalf("server Run failed: %v", err)
	}

	client := NewClient(format, fastOptions(nil)...)
	clientAddr, err := client.Run("", serverAddr)
	if err != nil {
		t.Fatalf("client Run failed: %v", err)
	}
	defer client.Stop()

	waitFor(t, "client registration", func() bool { return server.ClientLen() == 1 })

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if server.ClientLen() != 0 {
		t.Errorf("ClientLen = %d after Stop, want 0", server.ClientLen())
	}

	err = server.SendMsg(clientAddr, Message{Uint(1), Int(2)})
	var noClient *NoSuchClientError
	if !errors.As(err, &noClient) {
		t.Errorf("expected NoSuchClientError after Stop, got %v", err)
	}
}

func TestServer_MultipleClients(t *testing.T) {
	format := testFormat(t)
	sink := make(chan received, 16)

	server := NewServer(format, fastOptions(sink)...)
	serverAddr, err := server.Run("")
	if err != nil {
		t.Fatalf("server Run failed: %v", err)
	}
	defer server.Stop()

	const numClients = 3
	clients := make([]*Client, numClients)
	for i := range clients {
		clients[i] = NewClient(format, fastOptions(nil)...)
		if _, err := clients[i].Run("", serverAddr); err != nil {
			t.Fatalf("client %d Run failed: %v", i, err)
		}
		defer clients[i].Stop()
	}

	waitFor(t, "all registrations", func() bool { return server.ClientLen() == numClients })

	for i, c := range clients {
		if err := c.SendMsg(Message{Uint(uint64(i)), Int(0)}); err != nil {
			t.Fatalf("client %d SendMsg failed: %v", i, err)
		}
	}

	seen := make(map[string]bool)
	for i := 0; i < numClients; i++ {
		got := recvMsg(t, sink)
		seen[got.addr] = true
	}
	if len(seen) != numClients {
		t.Errorf("messages arrived from %d distinct peers, want %d", len(seen), numClients)
	}
}
