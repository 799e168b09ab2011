package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/hireloop/hireloop/pkg/ratelimit"
	"github.com/hireloop/hireloop/server/authdb"
	"github.com/hireloop/hireloop/server/config"
	"github.com/hireloop/hireloop/server/email"
)

type Server struct {
	Log     logs.Log
	Config  *config.Config
	AuthDB  *authdb.AuthDB
	Email   email.Sender
	Limiter *ratelimit.Limiter

	httpServer *http.Server
}

func NewServer(log logs.Log, cfg *config.Config, authDB *authdb.AuthDB, sender email.Sender) *Server {
	limiter := ratelimit.NewLimiter()
	limiter.StartSweeper(time.Minute)
	return &Server{
		Log:     log,
		Config:  cfg,
		AuthDB:  authDB,
		Email:   sender,
		Limiter: limiter,
	}
}

// ListenAndServe runs the HTTP server until it fails.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%v", s.Config.Port)
	s.Log.Infof("Listening on %v", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.SetupHTTP(),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown() {
	s.Limiter.Stop()
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}
