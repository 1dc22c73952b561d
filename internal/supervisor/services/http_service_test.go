// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

// fakeServer blocks in ListenAndServe until Shutdown, unless listenErr is set.
type fakeServer struct {
	listenErr   error
	shutdownErr error
	listens     atomic.Int32
	shutdowns   atomic.Int32
	started     chan struct{}
	stop        chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}, 8), stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	f.listens.Add(1)
	f.started <- struct{}{}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	if f.shutdowns.Add(1) == 1 {
		close(f.stop)
	}
	return f.shutdownErr
}

func waitStarted(t *testing.T, f *fakeServer) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	for _, d := range []time.Duration{0, -5 * time.Second} {
		if svc := NewHTTPServerService(newFakeServer(), d); svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout %v: got %v, want 10s", d, svc.shutdownTimeout)
		}
	}
	if svc := NewHTTPServerService(newFakeServer(), time.Second); svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		srv := newFakeServer()
		svc := NewHTTPServerService(srv, time.Second)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		waitStarted(t, srv)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if srv.listens.Load() != 1 || srv.shutdowns.Load() != 1 {
			t.Errorf("listens = %d, shutdowns = %d", srv.listens.Load(), srv.shutdowns.Load())
		}
	})

	t.Run("listen failure is returned", func(t *testing.T) {
		srv := newFakeServer()
		srv.listenErr = errors.New("bind: address already in use")

		err := NewHTTPServerService(srv, time.Second).Serve(context.Background())
		if !errors.Is(err, srv.listenErr) {
			t.Errorf("Serve() = %v, want %v", err, srv.listenErr)
		}
	})

	t.Run("shutdown failure is returned", func(t *testing.T) {
		srv := newFakeServer()
		srv.shutdownErr = errors.New("shutdown timeout")
		svc := NewHTTPServerService(srv, time.Second)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		waitStarted(t, srv)
		cancel()

		if err := <-errCh; !errors.Is(err, srv.shutdownErr) {
			t.Errorf("Serve() = %v, want %v", err, srv.shutdownErr)
		}
	})

	t.Run("server closed elsewhere is not restarted", func(t *testing.T) {
		srv := newFakeServer()
		svc := NewHTTPServerService(srv, time.Second)

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(context.Background()) }()
		waitStarted(t, srv)
		_ = srv.Shutdown(context.Background())

		if err := <-errCh; !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("Serve() = %v, want suture.ErrDoNotRestart", err)
		}
	})
}

func TestHTTPServerService_RealServer(t *testing.T) {
	// Reserve a free port, then let the server bind it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	server := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
		ReadHeaderTimeout: time.Second,
	}
	sup := suture.New("test", suture.Spec{FailureBackoff: 10 * time.Millisecond, Timeout: 2 * time.Second})
	sup.Add(NewHTTPServerService(server, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if resp, err = http.Get("http://" + addr); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	<-errCh
	if _, err := http.Get("http://" + addr); err == nil {
		t.Error("server still answering after shutdown")
	}
}
