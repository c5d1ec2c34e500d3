// Command echoserver demonstrates the runtime's end-to-end connect/accept/
// send/receive/close path, spec.md §8's S1 Echo scenario: a listener bound
// to an ephemeral port, a client connecting to it, the client sending
// "hello", the server echoing it back, and both sides closing cleanly.
//
// Run with: go run ./cmd/echoserver
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/bloomberg/ntf-core-sub027/netrt"
	"github.com/bloomberg/ntf-core-sub027/socket"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	iface, err := netrt.New(netrt.WithThreads(1))
	if err != nil {
		logger.Error("startup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer iface.Close()

	ln := iface.CreateListener()
	if err := ln.Open(socket.TransportTCP4, socket.Options{}); err != nil {
		logger.Error("listener open failed", slog.Any("err", err))
		os.Exit(1)
	}
	bindEP := socket.Endpoint{IP: net.ParseIP("127.0.0.1"), Port: 0}
	if err := ln.Bind(bindEP, socket.Options{}); err != nil {
		logger.Error("listener bind failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := ln.Listen(16); err != nil {
		logger.Error("listen failed", slog.Any("err", err))
		os.Exit(1)
	}

	serverEP := ln.LocalEndpoint()
	logger.Info("listening", slog.String("endpoint", serverEP.String()))

	serverDone := make(chan struct{})
	ln.Accept(socket.Options{}, func(ev socket.AcceptEvent) {
		if ev.Type != socket.Complete {
			logger.Error("accept failed", slog.Any("err", ev.Err))
			close(serverDone)
			return
		}
		server := ev.Stream
		server.Receive(5, 5, socket.Options{}, func(rev socket.ReceiveEvent) {
			if rev.Type != socket.Complete {
				logger.Error("server receive failed", slog.Any("err", rev.Err))
				close(serverDone)
				return
			}
			logger.Info("server received", slog.String("data", string(rev.Data)))
			server.Send(rev.Data, socket.Options{}, func(sev socket.SendEvent) {
				if sev.Type != socket.Complete {
					logger.Error("server send failed", slog.Any("err", sev.Err))
				}
				server.Close(func() { close(serverDone) })
			})
		})
	})

	client := iface.CreateStream()
	if err := client.Open(socket.TransportTCP4, socket.Options{}); err != nil {
		logger.Error("client open failed", slog.Any("err", err))
		os.Exit(1)
	}

	clientDone := make(chan struct{})
	client.Connect(serverEP, socket.Options{Deadline: time.Now().Add(5 * time.Second)}, func(cev socket.ConnectEvent) {
		if cev.Type != socket.Complete {
			logger.Error("client connect failed", slog.Any("err", cev.Err))
			close(clientDone)
			return
		}
		client.Send([]byte("hello"), socket.Options{}, func(sev socket.SendEvent) {
			if sev.Type != socket.Complete {
				logger.Error("client send failed", slog.Any("err", sev.Err))
				close(clientDone)
				return
			}
			client.Receive(5, 5, socket.Options{}, func(rev socket.ReceiveEvent) {
				if rev.Type != socket.Complete {
					logger.Error("client receive failed", slog.Any("err", rev.Err))
					client.Close(func() { close(clientDone) })
					return
				}
				fmt.Printf("echoed: %s\n", rev.Data)
				client.Close(func() { close(clientDone) })
			})
		})
	})

	select {
	case <-clientDone:
	case <-time.After(10 * time.Second):
		logger.Error("timed out waiting for client to finish")
		os.Exit(1)
	}
	select {
	case <-serverDone:
	case <-time.After(10 * time.Second):
		logger.Error("timed out waiting for server to finish")
		os.Exit(1)
	}
}
