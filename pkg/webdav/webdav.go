// Package webdav exposes the dataset output root over WebDAV, so a run
// can be browsed and pulled from another machine while it is still
// collecting.
package webdav

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/webdav"

	"signal-collector/pkg/utils"
)

// Serve starts a WebDAV server for dir on the given port. It shuts down
// when ctx is canceled.
func Serve(ctx context.Context, port int, dir string) {
	logger := utils.NamedLogger("webdav")

	h := &webdav.Handler{
		FileSystem: webdav.Dir(dir),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.Errorf("[%s] %s: %s", r.Method, r.URL, err)
			}
		},
	}
	svr := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h,
	}

	go func() {
		if err := svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("serve: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svr.Shutdown(sdCtx); err != nil {
			logger.Errorf("shutdown: %s", err)
		}
	}()
}
