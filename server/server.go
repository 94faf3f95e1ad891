/*
Copyright 2024 The Statscache Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package server hosts the read-only query service of the daemon.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vivekanand1101/statscache/pkg/shared/logging"
	v1 "github.com/vivekanand1101/statscache/server/apis/v1"
	"github.com/vivekanand1101/statscache/server/routes"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address string
	handler *v1.Handler
}

// NewServer returns a query service bound to the given address.
func NewServer(address string, handler *v1.Handler) *Server {
	return &Server{
		address: address,
		handler: handler,
	}
}

// Start serves the API until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log := logging.FromContext(ctx).Named("server")
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/livez", "/readyz", "/healthz", "/metrics"}}))
	routes.Routes(router, s.handler)

	srv := &http.Server{
		Addr:    s.address,
		Handler: router,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Infow("Query service started", "address", s.address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("Query service shutdown")
	return nil
}
