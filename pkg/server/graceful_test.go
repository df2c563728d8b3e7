package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
}

func startServer(t *testing.T, gs *GracefulServer) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- gs.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if resp, err := http.Get(url); err == nil {
			resp.Body.Close()
			return url, cancel, errc
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	t.Fatal("server did not start")
	return "", nil, nil
}

func TestGracefulServer_ServeAndShutdown(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", okHandler(), nil)
	url, cancel, errc := startServer(t, gs)

	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !gs.IsShuttingDown() {
		t.Error("expected shutdown to be recorded")
	}
}

func TestGracefulServer_SIGHUPReloads(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", okHandler(), nil)
	reloaded := make(chan struct{}, 1)
	gs.SetReloadFunc(func(ctx context.Context) error {
		reloaded <- struct{}{}
		return nil
	})

	_, cancel, errc := startServer(t, gs)
	defer func() {
		cancel()
		<-errc
	}()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("Failed to send SIGHUP: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("reload was not triggered by SIGHUP")
	}
	if gs.IsShuttingDown() {
		t.Error("Server should not be shutting down after SIGHUP")
	}
}

func TestGracefulServer_Reload(t *testing.T) {
	gs := NewGracefulServer(":0", okHandler(), nil)

	if err := gs.Reload(context.Background()); err != nil {
		t.Errorf("Reload without a function = %v", err)
	}

	want := errors.New("bundle unreadable")
	gs.SetReloadFunc(func(ctx context.Context) error { return want })
	if err := gs.Reload(context.Background()); !errors.Is(err, want) {
		t.Errorf("Reload() error = %v, want %v", err, want)
	}
}

func TestGracefulServer_ShutdownIsIdempotent(t *testing.T) {
	gs := NewGracefulServer(":0", okHandler(), nil)

	if err := gs.Shutdown(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := gs.Shutdown(time.Second); err != nil {
		t.Fatal(err)
	}
	select {
	case <-gs.ShutdownChannel():
	default:
		t.Error("shutdown channel not closed")
	}
}
