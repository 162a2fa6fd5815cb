package repotree

// Seed returns the fixed demo forest loaded at startup. Imports append new
// roots beside it; nothing ever removes it.
func Seed() []*FileNode {
	return []*FileNode{
		{
			Name: "demo-service",
			Path: "demo-service",
			Kind: KindDirectory,
			Children: []*FileNode{
				{
					Name: "cmd",
					Path: "demo-service/cmd",
					Kind: KindDirectory,
					Children: []*FileNode{
						{
							Name: "main.go",
							Path: "demo-service/cmd/main.go",
							Kind: KindFile,
							Content: `package main

import (
	"log"
	"net/http"

	"demo-service/internal/server"
)

func main() {
	srv := server.New(":8080")
	log.Fatal(http.ListenAndServe(srv.Addr, srv.Handler()))
}
`,
						},
					},
				},
				{
					Name: "internal",
					Path: "demo-service/internal",
					Kind: KindDirectory,
					Children: []*FileNode{
						{
							Name: "server",
							Path: "demo-service/internal/server",
							Kind: KindDirectory,
							Children: []*FileNode{
								{
									Name: "server.go",
									Path: "demo-service/internal/server/server.go",
									Kind: KindFile,
									Content: `package server

import "net/http"

// Server wires the HTTP mux for the demo service.
type Server struct {
	Addr string
	mux  *http.ServeMux
}

func New(addr string) *Server {
	s := &Server{Addr: addr, mux: http.NewServeMux()}
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
`,
								},
							},
						},
					},
				},
				{
					Name: "README.md",
					Path: "demo-service/README.md",
					Kind: KindFile,
					Content: `# demo-service

A tiny HTTP service used as the seed repository for codescope.
Select a file in the tree pane, or import a remote repository with
` + "`/import host/owner/repo`" + `.
`,
				},
			},
		},
	}
}
