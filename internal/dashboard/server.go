package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/justin4957/logflow-access-analyzer/internal/config"
	"github.com/justin4957/logflow-access-analyzer/pkg/models"
)

const writeTimeout = 5 * time.Second

// Server provides the web dashboard
type Server struct {
	config    config.DashboardConfig
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	latest    *models.AnalysisReport
	latestMu  sync.RWMutex
}

// NewServer creates a new dashboard server
func NewServer(cfg config.DashboardConfig) *Server {
	return &Server{
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handler returns the dashboard routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start serves the dashboard until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Dashboard server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dashboard server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	s.closeClients()
	return server.Shutdown(shutdownCtx)
}

// Publish stores rep as the latest report and pushes it to every client
func (s *Server) Publish(rep *models.AnalysisReport) {
	s.latestMu.Lock()
	s.latest = rep
	s.latestMu.Unlock()

	s.clientsMu.Lock()
	var failed []*websocket.Conn
	for client := range s.clients {
		if err := s.send(client, rep); err != nil {
			log.Printf("WebSocket write error: %v", err)
			failed = append(failed, client)
		}
	}
	for _, client := range failed {
		client.Close()
		delete(s.clients, client)
	}
	s.clientsMu.Unlock()
}

// Latest returns the most recently published report, or nil
func (s *Server) Latest() *models.AnalysisReport {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

// ClientCount returns the number of connected websocket clients
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) send(conn *websocket.Conn, rep *models.AnalysisReport) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(rep)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	// Register and send the current report under the same lock so a
	// concurrent Publish cannot interleave writes on this connection
	s.clientsMu.Lock()
	if latest := s.Latest(); latest != nil {
		if err := s.send(conn, latest); err != nil {
			s.clientsMu.Unlock()
			log.Printf("WebSocket write error: %v", err)
			conn.Close()
			return
		}
	}
	s.clients[conn] = true
	s.clientsMu.Unlock()

	log.Printf("WebSocket client connected")

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			s.removeClient(conn)
			break
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.clients[conn] {
		conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	latest := s.Latest()
	if latest == nil {
		http.Error(w, "no report yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(latest); err != nil {
		log.Printf("Failed to encode report: %v", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>LogFlow Access Analyzer</title>
    <style>
        body { font: 15px/1.4 system-ui, sans-serif; margin: 2em auto; max-width: 60em; color: #222; }
        header { display: flex; justify-content: space-between; align-items: baseline; border-bottom: 1px solid #ccc; }
        #status { color: #777; font-size: 0.85em; }
        .summary { display: flex; gap: 3em; margin: 1.5em 0; }
        .summary b { display: block; font-size: 1.8em; }
        .rankings { display: flex; gap: 2em; }
        table { flex: 1; border-collapse: collapse; }
        caption { text-align: left; font-weight: bold; padding-bottom: 0.4em; }
        td { padding: 0.2em 0.5em; border-bottom: 1px solid #eee; font-family: monospace; }
        td:last-child { text-align: right; }
    </style>
</head>
<body>
    <header>
        <h1>LogFlow Access Analyzer</h1>
        <span id="status">connecting</span>
    </header>

    <section class="summary">
        <div>Unique IP addresses <b id="unique">-</b></div>
        <div>Lines matched / read <b id="lines">-</b></div>
    </section>

    <section class="rankings">
        <table><caption>Most visited URLs</caption><tbody id="top-urls"></tbody></table>
        <table><caption>Most active IP addresses</caption><tbody id="top-ips"></tbody></table>
    </section>

    <script>
        const ws = new WebSocket('ws://' + window.location.host + '/ws');
        const statusEl = document.getElementById('status');

        function fill(id, entries) {
            const body = document.getElementById(id);
            body.innerHTML = '';
            (entries || []).forEach((entry, i) => {
                const row = body.insertRow();
                row.insertCell().textContent = (i + 1) + '.';
                row.insertCell().textContent = entry.key;
                row.insertCell().textContent = entry.count;
            });
        }

        ws.onopen = () => { statusEl.textContent = 'connected'; };
        ws.onclose = () => { statusEl.textContent = 'disconnected'; };

        ws.onmessage = (event) => {
            const report = JSON.parse(event.data);
            document.getElementById('unique').textContent = report.unique_address_count;
            document.getElementById('lines').textContent = report.lines_matched + ' / ' + report.lines_read;
            fill('top-urls', report.top_urls);
            fill('top-ips', report.top_ips);
            statusEl.textContent = report.source + ' at ' + new Date().toLocaleTimeString();
        };
    </script>
</body>
</html>`
