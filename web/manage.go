// Monitoring server
//
// Copyright (c) 2024  Philip Kaludercic
//
// This file is part of go-trb.
//
// go-trb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-trb is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-trb. If not, see
// <http://www.gnu.org/licenses/>

package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go-trb"
	"go-trb/cmd"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type web struct {
	*metrics

	ledger cmd.Ledger
	srv    *http.Server
	mux    *http.ServeMux
}

func newWeb(addr string) *web {
	s := &web{
		metrics: newMetrics(),
		mux:     http.NewServeMux(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/runs", s.showRuns)
	s.mux.HandleFunc("/run/", s.showRun)
	s.mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /")
	})
	return s
}

func (s *web) Start(st *cmd.State, conf *cmd.Conf) {
	s.ledger = st.Ledger

	log.Printf("Listening via HTTP on %s", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Print(err)
	}
}

func (s *web) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		trb.Debug.Print(err)
	}
}

func (*web) String() string { return "Web Server" }

// Register the monitoring server, if an address was configured
func Register(st *cmd.State, conf *cmd.Conf) {
	if conf.Metrics.Addr == "" {
		return
	}

	st.Register(cmd.Monitor(newWeb(conf.Metrics.Addr)))
}
