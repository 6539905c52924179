// Command daibug is the daibug entry point: flag parsing, config loading,
// hub lifecycle, and the stdio MCP tool transport. Grounded on the
// teacher's cmd/dev-console/main.go flag-parsing/mode-dispatch shape, but
// wired onto the hub rather than the teacher's Server/MCPHandlerV4 pair.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/daibug/daibug/internal/config"
	"github.com/daibug/daibug/internal/hub"
	"github.com/daibug/daibug/internal/logging"
	"github.com/daibug/daibug/internal/metrics"
	"github.com/daibug/daibug/internal/tool"
	"github.com/rs/zerolog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("daibug", flag.ContinueOnError)
	cmdline := fs.String("cmd", "", "shell command to supervise (required)")
	httpPort := fs.Int("http-port", 0, "preferred HTTP port")
	wsPort := fs.Int("ws-port", 0, "preferred WS port")
	configPath := fs.String("config", "", "path to daibug.config.json")
	noConfig := fs.Bool("no-config", false, "ignore --config and use built-in defaults")
	console := fs.String("console", "", "console.include override")
	watchNetwork := fs.String("watch-network", "", "urlGlob:statusCodes watch rule")
	redact := fs.String("redact", "", "additional redact.fields entries")
	sessionAutoStart := fs.Bool("session-auto-start", false, "session.autoStart = true")
	logLevel := fs.String("log-level", "", "logging.level override")
	logFormat := fs.String("log-format", "", "logging.format override")
	metricsOn := fs.Bool("metrics", false, "metrics.enabled = true")
	metricsPort := fs.Int("metrics-port", 0, "metrics.port override")
	_ = fs.Bool("mcp", true, "run the tool surface over stdio line-delimited JSON")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *cmdline == "" {
		fmt.Fprintln(os.Stderr, "daibug: --cmd is required")
		return 1
	}

	path := *configPath
	if *noConfig {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daibug: loading config: %v\n", err)
		return 1
	}
	applyFlagOverrides(&cfg, flagOverrides{
		httpPort:         *httpPort,
		wsPort:           *wsPort,
		console:          *console,
		watchNetwork:     *watchNetwork,
		redact:           *redact,
		sessionAutoStart: *sessionAutoStart,
		logLevel:         *logLevel,
		logFormat:        *logFormat,
		metricsOn:        *metricsOn,
		metricsPort:      *metricsPort,
	})

	if errs := config.Validate(cfg); len(errs) > 0 {
		fmt.Fprintln(os.Stderr, "daibug: invalid config:")
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "  - "+e)
		}
		return 1
	}

	log := logging.New(cfg.Logging)
	met, registry := metrics.New()

	h := hub.New(cfg, log, met, time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.Start(ctx, *cmdline); err != nil {
		log.Error().Err(err).Msg("hub failed to start")
		return 1
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port, metrics.Handler(registry), log)
	}

	registryTools := tool.NewRegistry()
	tool.RegisterAll(registryTools, h)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
		_ = h.Stop()
		os.Exit(0)
	}()

	runStdioMCP(registryTools, log)
	return 0
}

type flagOverrides struct {
	httpPort, wsPort, metricsPort int
	console, watchNetwork, redact string
	logLevel, logFormat           string
	sessionAutoStart, metricsOn   bool
}

func applyFlagOverrides(cfg *config.Config, o flagOverrides) {
	if o.httpPort != 0 {
		cfg.Hub.HTTPPort = o.httpPort
	}
	if o.wsPort != 0 {
		cfg.Hub.WSPort = o.wsPort
	}
	if o.console != "" {
		cfg.Console.Include = config.ExpandConsoleLevels(strings.Split(o.console, ","))
	}
	if o.watchNetwork != "" {
		if rule, ok := parseWatchNetworkFlag(o.watchNetwork); ok {
			cfg.Watch = append(cfg.Watch, rule)
		}
	}
	if o.redact != "" {
		cfg.Redact.Fields = append(cfg.Redact.Fields, strings.Split(o.redact, ",")...)
	}
	if o.sessionAutoStart {
		cfg.Session.AutoStart = true
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	if o.metricsOn {
		cfg.Metrics.Enabled = true
	}
	if o.metricsPort != 0 {
		cfg.Metrics.Port = o.metricsPort
	}
}

// parseWatchNetworkFlag parses "urlGlob:status,status,..." into a
// WatchRuleSpec (spec §6.5 --watch-network).
func parseWatchNetworkFlag(raw string) (config.WatchRuleSpec, bool) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return config.WatchRuleSpec{}, false
	}
	var codes []int
	for _, c := range strings.Split(parts[1], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			continue
		}
		codes = append(codes, n)
	}
	if len(codes) == 0 {
		return config.WatchRuleSpec{}, false
	}
	return config.WatchRuleSpec{
		Label:       "cli:watch-network",
		Source:      "browser:network",
		StatusCodes: codes,
		URLPattern:  parts[0],
	}, true
}

// serveMetrics runs the Prometheus /metrics endpoint on its own loopback
// listener, independent of the HTTP endpoint's port (SPEC_FULL.md §6.3).
func serveMetrics(port int, handler http.Handler, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec // loopback only
		log.Warn().Err(err).Msg("metrics listener stopped")
	}
}

// runStdioMCP runs the tool surface as newline-delimited JSON-RPC over
// stdin/stdout, mirroring the teacher's runMCPMode scanner loop.
func runStdioMCP(registry *tool.Registry, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resp := handleLine(registry, line)
		fmt.Println(resp)
	}
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func handleLine(registry *tool.Registry, line string) string {
	var req rpcRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		resp := rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error: " + err.Error()}}
		data, _ := json.Marshal(resp)
		return string(data)
	}

	switch req.Method {
	case "initialize":
		result, _ := json.Marshal(map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]string{"name": "daibug", "version": "1.0.0"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		})
		return mustEncode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})

	case "tools/list":
		result, _ := json.Marshal(map[string]any{"tools": registry.List()})
		return mustEncode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})

	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return mustEncode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}})
		}
		text := registry.Call(params.Name, params.Arguments)
		result, _ := json.Marshal(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
		return mustEncode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})

	default:
		return mustEncode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "method not found: " + req.Method}})
	}
}

func mustEncode(resp rpcResponse) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return `{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error"}}`
	}
	return string(data)
}
