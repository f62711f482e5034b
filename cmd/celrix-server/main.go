// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// celrix-server is the thin binary that wires internal/config into
// internal/server and runs it until an interrupt or terminate signal
// arrives, in the style of cmd/tfd-proxy/main.go: parse flags, build the
// components, start, wait for a signal, stop.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"celrix/internal/config"
	"celrix/internal/server"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("celrix: config: %v", err)
	}

	srv := server.New(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("celrix: serve: %v", err)
		}
	case sig := <-sigCh:
		log.Printf("celrix: received %s, shutting down", sig)
		srv.Stop()
		if err := <-errCh; err != nil {
			log.Printf("celrix: serve returned after stop: %v", err)
		}
	}
}
