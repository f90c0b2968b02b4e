// README: Smoke cases: environment, search, order lifecycle, payment race, location relay, websocket and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"keeva/internal/infra"
)

type Runner struct {
	cfg    Config
	httpc  *http.Client
	db     *pgxpool.Pool
	redis  *redis.Client
	tokens map[string]string
	// orderID is the order placed by the lifecycle cases.
	orderID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		tokens: map[string]string{},
	}
}

func (r *Runner) mintTokens() error {
	if r.cfg.JWTSecret == "" {
		return nil
	}
	run := time.Now().Format("20060102150405")
	identities := map[string]struct {
		sub    string
		claims map[string]interface{}
	}{
		"customer": {"bench-customer-" + run, map[string]interface{}{"role": "customer"}},
		"admin":    {"bench-admin", map[string]interface{}{"role": "admin"}},
		"rider":    {"bench-rider", map[string]interface{}{"partnerId": "bench-rider", "role": "partner", "partnerRole": "rider"}},
	}
	for name, id := range identities {
		tok, err := infra.SignJWT(r.cfg.JWTSecret, id.sub, id.claims, time.Hour)
		if err != nil {
			return err
		}
		r.tokens[name] = tok
	}
	return nil
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}
	if err := r.mintTokens(); err != nil {
		fmt.Println("token minting failed:", err)
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

// call sends a JSON request as the named identity ("" for anonymous) and decodes the reply.
func (r *Runner) call(ctx context.Context, method, path, as string, body any) (int, map[string]any, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := r.tokens[as]; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out, latency, nil
}

func (r *Runner) needs(identities ...string) *Result {
	for _, id := range identities {
		if r.tokens[id] == "" {
			return &Result{Status: "SKIP", Note: "jwt-secret not set"}
		}
	}
	return nil
}

func expect(name, method, path, as string, body any, want ...int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			if as != "" {
				if skip := r.needs(as); skip != nil {
					return *skip
				}
			}
			status, _, latency, err := r.call(ctx, method, path, as, body)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if contains(want, status) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

func basket() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"productId": "bench-p1", "name": "Bench Soap", "quantity": 2, "unitPrice": 50, "category": "Grocery"},
			{"productId": "bench-p2", "name": "Bench Shampoo", "quantity": 1, "unitPrice": 30, "discount": 5, "category": "Grocery"},
		},
		"payment": map[string]any{"method": "cod"},
	}
}

func (r *Runner) placeOrder(ctx context.Context) (string, error) {
	status, body, _, err := r.call(ctx, http.MethodPost, "/api/orders", "customer", basket())
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("status=%d body=%v", status, body)
	}
	o, _ := body["order"].(map[string]any)
	id, _ := o["orderId"].(string)
	if id == "" {
		return "", fmt.Errorf("no orderId in response")
	}
	return id, nil
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		expect("API: health", http.MethodGet, "/health", "", nil, http.StatusOK),
		expect("API: unauthenticated -> 401", http.MethodGet, "/api/orders", "", nil, http.StatusUnauthorized),

		// Search
		expect("Search: query", http.MethodGet, "/api/search?query=soap", "", nil, http.StatusOK),
		expect("Search: typo falls back to full scan", http.MethodGet, "/api/search?query=shampo", "", nil, http.StatusOK),
		expect("Search: empty query -> 400", http.MethodGet, "/api/search", "", nil, http.StatusBadRequest),
		expect("Search: suggestions", http.MethodGet, "/api/search/suggestions?q=sha", "", nil, http.StatusOK),
		expect("Search: trending", http.MethodGet, "/api/search/trending?limit=5", "", nil, http.StatusOK),

		// Customer setup
		expect("Customer: profile", http.MethodPut, "/api/me", "customer",
			map[string]any{"name": "Bench Customer", "phone": "9999999999"}, http.StatusOK),
		expect("Customer: address", http.MethodPost, "/api/me/addresses", "customer", map[string]any{
			"label": "Home", "street": "MG Road", "city": "Bengaluru", "pincode": "560001",
			"latitude": 12.9756, "longitude": 77.6067, "isDefault": true,
		}, http.StatusOK),
		expect("Coupon: eligible", http.MethodGet, "/api/coupons/eligible", "customer", nil, http.StatusOK),

		// Order lifecycle
		{
			Name: "Order: place COD",
			Run: func(ctx context.Context, r *Runner) Result {
				if skip := r.needs("customer"); skip != nil {
					return *skip
				}
				start := time.Now()
				id, err := r.placeOrder(ctx)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				r.orderID = id
				return Result{Status: "PASS", Latency: time.Since(start), Note: id}
			},
		},
		{
			Name: "Order: lifecycle and policy",
			Run: func(ctx context.Context, r *Runner) Result {
				if skip := r.needs("customer", "admin", "rider"); skip != nil {
					return *skip
				}
				if r.orderID == "" {
					return Result{Status: "SKIP", Note: "no order placed"}
				}
				path := "/api/orders/" + r.orderID + "/status"
				steps := []struct {
					as, status string
					want       int
				}{
					{"rider", "Delivered", http.StatusForbidden},
					{"customer", "Delivered", http.StatusForbidden},
					{"admin", "Accepted", http.StatusOK},
					{"admin", "Assigned", http.StatusOK},
					{"rider", "OutForDelivery", http.StatusOK},
					{"rider", "Delivered", http.StatusOK},
				}
				for _, s := range steps {
					status, _, _, err := r.call(ctx, http.MethodPatch, path, s.as, map[string]any{"status": s.status})
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if status != s.want {
						return Result{Status: "FAIL", Note: fmt.Sprintf("%s -> %s: status=%d want %d", s.as, s.status, status, s.want)}
					}
				}
				status, body, _, err := r.call(ctx, http.MethodGet, "/api/orders/"+r.orderID, "customer", nil)
				if err != nil || status != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("get status=%d err=%v", status, err)}
				}
				o, _ := body["order"].(map[string]any)
				hist, _ := o["statusHistory"].([]any)
				if len(hist) != 5 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("history=%d want 5", len(hist))}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("version=%v", o["version"])}
			},
		},
		{
			Name: "Rating: rate delivered order",
			Run: func(ctx context.Context, r *Runner) Result {
				if skip := r.needs("customer"); skip != nil {
					return *skip
				}
				if r.orderID == "" {
					return Result{Status: "SKIP", Note: "no order placed"}
				}
				body := map[string]any{
					"order_rating": map[string]any{"rating": 5, "review_text": "quick"},
					"rider_rating": map[string]any{"rating": 4},
				}
				status, _, latency, err := r.call(ctx, http.MethodPost, "/api/orders/"+r.orderID+"/rate", "customer", body)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				// 404 when the rider has no partners row in this database.
				if status != http.StatusCreated && status != http.StatusNotFound {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			},
		},
		{
			Name: "Concurrency: payment settled once",
			Run:  concurrentPaymentSettle,
		},
		{
			Name: "Concurrency: customer cancel vs admin accept",
			Run:  concurrentCancelAccept,
		},

		// Location
		{
			Name: "Location: relay",
			Run: func(ctx context.Context, r *Runner) Result {
				if skip := r.needs("rider"); skip != nil {
					return *skip
				}
				if r.orderID == "" {
					return Result{Status: "SKIP", Note: "no order placed"}
				}
				status, _, latency, err := r.call(ctx, http.MethodPost, "/api/riders/location", "rider",
					map[string]any{"orderId": r.orderID, "latitude": 12.97, "longitude": 77.59})
				if err != nil || status != http.StatusAccepted {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d err=%v", status, err)}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		expect("Location: invalid coords -> 400", http.MethodPost, "/api/riders/location", "rider",
			map[string]any{"orderId": "ORD-any", "latitude": 123.0, "longitude": 456.0}, http.StatusBadRequest),
		{
			Name: "WS: orders:init snapshot",
			Run:  wsSnapshot,
		},

		// Performance
		{
			Name: "Perf: location relay throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				if skip := r.needs("rider"); skip != nil {
					return *skip
				}
				if r.orderID == "" {
					return Result{Status: "SKIP", Note: "no order placed"}
				}
				return perfLoad(ctx, r, http.MethodPost, "/api/riders/location", "rider",
					map[string]any{"orderId": r.orderID, "latitude": 12.97, "longitude": 77.59})
			},
		},
		{
			Name: "Perf: search throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodGet, "/api/search?query=soap", "", nil)
			},
		},
	}
}

// concurrentPaymentSettle races admins marking the same COD payment Done; exactly one may win.
func concurrentPaymentSettle(ctx context.Context, r *Runner) Result {
	if skip := r.needs("customer", "admin"); skip != nil {
		return *skip
	}
	id, err := r.placeOrder(ctx)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	statuses := race(ctx, r, r.cfg.Concurrency, func(int) (string, string, any) {
		return "/api/orders/" + id + "/payment-status", "admin", map[string]any{"paymentStatus": "Done"}
	})
	if statuses[http.StatusOK] != 1 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("statuses=%v", statuses)}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("statuses=%v", statuses)}
}

// concurrentCancelAccept races one cancel against one accept; both may apply in some
// order but the history must match the final status.
func concurrentCancelAccept(ctx context.Context, r *Runner) Result {
	if skip := r.needs("customer", "admin"); skip != nil {
		return *skip
	}
	id, err := r.placeOrder(ctx)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	statuses := race(ctx, r, 2, func(i int) (string, string, any) {
		if i == 0 {
			return "/api/orders/" + id + "/status", "customer", map[string]any{"status": "Cancelled"}
		}
		return "/api/orders/" + id + "/status", "admin", map[string]any{"status": "Accepted"}
	})
	status, body, _, err := r.call(ctx, http.MethodGet, "/api/orders/"+id, "admin", nil)
	if err != nil || status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("get status=%d err=%v", status, err)}
	}
	o, _ := body["order"].(map[string]any)
	hist, _ := o["statusHistory"].([]any)
	if len(hist) == 0 {
		return Result{Status: "FAIL", Note: "empty history"}
	}
	last, _ := hist[len(hist)-1].(map[string]any)
	if last["status"] != o["status"] {
		return Result{Status: "FAIL", Note: fmt.Sprintf("history tail %v != status %v", last["status"], o["status"])}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("final=%v statuses=%v", o["status"], statuses)}
}

func race(ctx context.Context, r *Runner, n int, req func(i int) (path, as string, body any)) map[int]int {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		statuses = map[int]int{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, as, body := req(i)
			status, _, _, err := r.call(ctx, http.MethodPatch, path, as, body)
			if err != nil {
				return
			}
			mu.Lock()
			statuses[status]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return statuses
}

func wsSnapshot(ctx context.Context, r *Runner) Result {
	if skip := r.needs("customer"); skip != nil {
		return *skip
	}
	url := "ws" + strings.TrimPrefix(r.cfg.BaseURL, "http") + "/ws?token=" + r.tokens["customer"]
	start := time.Now()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame struct {
		Event string            `json:"event"`
		Data  []json.RawMessage `json:"data"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if frame.Event != "orders:init" {
		return Result{Status: "FAIL", Note: "first event " + frame.Event}
	}
	return Result{Status: "PASS", Latency: time.Since(start), Note: fmt.Sprintf("orders=%d", len(frame.Data))}
}

func perfLoad(ctx context.Context, r *Runner, method, path, as string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu              sync.Mutex
		wg              sync.WaitGroup
		count, errCount int64
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.call(ctx, method, path, as, payload)
				mu.Lock()
				if err != nil || status >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
