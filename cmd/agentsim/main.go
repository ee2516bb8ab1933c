// agentsim is a development stand-in for an installed agent. It dials
// the agent channel, completes the hello/registration exchange, answers
// ping and getfullinventory commands, and heartbeats until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type envelope struct {
	Action     string          `json:"action"`
	CommandID  string          `json:"commandId"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

type sim struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	name     string
	mac      string
	logger   *zap.Logger
	deviceID string
}

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/agent", "FleetGate agent channel URL")
	name := flag.String("name", "", "hostname to report (defaults to the local hostname)")
	mac := flag.String("mac", "AA:BB:CC:00:11:22", "MAC address to report")
	heartbeat := flag.Duration("heartbeat", 30*time.Second, "heartbeat interval")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	hostname := *name
	if hostname == "" {
		hostname, _ = os.Hostname()
		if hostname == "" {
			hostname = "agentsim"
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *serverURL, nil)
	if err != nil {
		logger.Fatal("failed to connect", zap.String("url", *serverURL), zap.Error(err))
	}
	defer conn.Close()

	s := &sim{conn: conn, name: hostname, mac: *mac, logger: logger}
	if err := s.run(ctx, *heartbeat); err != nil {
		logger.Fatal("agent error", zap.Error(err))
	}

	logger.Info("agent simulator stopped")
}

func (s *sim) run(ctx context.Context, heartbeat time.Duration) error {
	if err := s.send(map[string]any{"action": "agenthello", "ver": "1.0.0"}); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	if err := s.send(map[string]any{
		"action":     "agentinfo",
		"name":       s.name,
		"macAddress": s.mac,
		"osdesc":     runtime.GOOS,
		"platform":   runtime.GOARCH,
		"ver":        "1.0.0",
	}); err != nil {
		return fmt.Errorf("agentinfo: %w", err)
	}

	go s.heartbeatLoop(ctx, heartbeat)

	// Close the socket when the context ends so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.handle(data)
	}
}

func (s *sim) handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("unparseable server message", zap.Error(err))
		return
	}

	switch env.Action {
	case "serverhello":
		s.logger.Info("server hello received")
	case "registered":
		var reg struct {
			DeviceID string `json:"deviceId"`
		}
		_ = json.Unmarshal(data, &reg)
		s.deviceID = reg.DeviceID
		s.logger.Info("registered", zap.String("device_id", s.deviceID))
	case "error":
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &e)
		s.logger.Error("server rejected registration", zap.String("message", e.Message))
	case "ping":
		s.result(env.CommandID, true, json.RawMessage(`"pong"`), "")
	case "getfullinventory":
		s.result(env.CommandID, true, s.inventory(), "")
	default:
		s.logger.Info("unsupported command, reporting failure",
			zap.String("action", env.Action),
			zap.String("command_id", env.CommandID),
		)
		s.result(env.CommandID, false, nil, "not supported by agentsim")
	}
}

// inventory fabricates a minimal hardware report.
func (s *sim) inventory() json.RawMessage {
	report := map[string]any{
		"hardware": map[string]any{
			"manufacturer":     "AgentSim",
			"model":            "Virtual",
			"serialNumber":     "SIM-0001",
			"totalMemoryBytes": int64(8) << 30,
			"processorName":    runtime.GOARCH,
			"processorCores":   runtime.NumCPU(),
		},
		"collectedAt": time.Now().UTC().Format(time.RFC3339),
	}
	data, _ := json.Marshal(report)
	return data
}

func (s *sim) result(commandID string, success bool, result json.RawMessage, errMsg string) {
	msg := map[string]any{
		"action":    "commandResult",
		"commandId": commandID,
		"success":   success,
	}
	if result != nil {
		msg["result"] = result
	}
	if errMsg != "" {
		msg["error"] = errMsg
	}
	if err := s.send(msg); err != nil {
		s.logger.Warn("failed to send command result", zap.Error(err))
	}
}

func (s *sim) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.send(map[string]any{"action": "heartbeat"}); err != nil {
				s.logger.Warn("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

// send serializes writes; the heartbeat loop and the command handler
// both write to the same connection.
func (s *sim) send(msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
