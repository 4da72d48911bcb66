package utils

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WatchSignal blocks until SIGINT or SIGTERM arrives.
func WatchSignal() {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	<-signalCh
}

// OnSignal invokes fn from a background goroutine when SIGINT or SIGTERM
// arrives. A second signal terminates the process immediately, for runs
// where cleanup itself wedges.
func OnSignal(fn func()) {
	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signalCh
		fn()
		<-signalCh
		os.Exit(1)
	}()
}

// ListenAndServe blocks until SIGINT or SIGTERM, then drains the server.
func ListenAndServe(h http.Handler, port int) {
	shutdown := Serve(h, port)
	defer shutdown()

	WatchSignal()
}

// Serve starts an HTTP server in the background and returns a shutdown
// func with a 5s drain budget.
func Serve(h http.Handler, port int) func() {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			GetLogger().Errorf("http server: %s", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			GetLogger().Warnf("http server shutdown: %s", err)
		}
	}
}
