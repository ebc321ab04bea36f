//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rideshare-app/apiserver/config"
	"github.com/rideshare-app/apiserver/internal/db"
	"github.com/rideshare-app/apiserver/internal/logging"
	"github.com/rideshare-app/apiserver/internal/server"
	"github.com/rideshare-app/apiserver/types"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setEnv()

	if err := dockerCompose(ctx, root, "up", "-d", "postgres", "redis"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestRideLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	seed := time.Now().UnixNano() % 100000000
	driverMobile := fmt.Sprintf("9%09d", seed)
	passengerMobile := fmt.Sprintf("8%09d", seed)

	driver, err := signIn(baseURL, driverMobile, "driver")
	if err != nil {
		t.Fatalf("sign in driver: %v", err)
	}
	passenger, err := signIn(baseURL, passengerMobile, "passenger")
	if err != nil {
		t.Fatalf("sign in passenger: %v", err)
	}

	rideTime := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	var published struct {
		Ride types.Ride `json:"ride"`
	}
	status, err := doJSON(http.MethodPost, baseURL+"/api/rides/publish", driver.Token, map[string]string{
		"pickup":   "Andheri",
		"drop":     "Powai",
		"rideTime": rideTime,
	}, &published)
	if err != nil {
		t.Fatalf("publish ride: %v", err)
	}
	if status != http.StatusCreated {
		t.Fatalf("publish ride: unexpected status %d", status)
	}
	if published.Ride.StartOTP == nil || len(*published.Ride.StartOTP) != 6 {
		t.Fatalf("expected a 6-digit start code on the published ride")
	}
	rideID := published.Ride.ID

	var joined struct {
		Request types.RideRequest `json:"request"`
	}
	status, err = doJSON(http.MethodPost, baseURL+"/api/rides/request", passenger.Token, map[string]string{"rideId": rideID}, &joined)
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	if status != http.StatusOK || joined.Request.Status != types.RequestPending {
		t.Fatalf("request ride: status %d, request %q", status, joined.Request.Status)
	}

	status, err = doJSON(http.MethodPost, baseURL+"/api/rides/request", passenger.Token, map[string]string{"rideId": rideID}, nil)
	if err != nil {
		t.Fatalf("duplicate request: %v", err)
	}
	if status != http.StatusConflict {
		t.Fatalf("duplicate request: expected 409, got %d", status)
	}

	status, err = doJSON(http.MethodPost, baseURL+"/api/rides/verify-ride-otp", driver.Token, map[string]string{
		"rideId": rideID,
		"otp":    *published.Ride.StartOTP,
	}, nil)
	if err != nil {
		t.Fatalf("verify start code: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("verify start code: unexpected status %d", status)
	}

	var completed struct {
		Ride types.Ride `json:"ride"`
	}
	status, err = doJSON(http.MethodPost, baseURL+"/api/rides/complete", driver.Token, map[string]string{"rideId": rideID}, &completed)
	if err != nil {
		t.Fatalf("complete ride: %v", err)
	}
	if status != http.StatusOK || completed.Ride.Status != types.RideCompleted {
		t.Fatalf("complete ride: status %d, ride %q", status, completed.Ride.Status)
	}

	var booked struct {
		Rides []types.RideRequestView `json:"rides"`
	}
	status, err = doJSON(http.MethodGet, baseURL+"/api/ratings/booked", passenger.Token, nil, &booked)
	if err != nil {
		t.Fatalf("list booked: %v", err)
	}
	if status != http.StatusOK || len(booked.Rides) != 1 {
		t.Fatalf("list booked: status %d, %d rides", status, len(booked.Rides))
	}
	if booked.Rides[0].Status != types.RequestApproved {
		t.Fatalf("expected approved booking, got %q", booked.Rides[0].Status)
	}

	status, err = doJSON(http.MethodPost, baseURL+"/api/ratings/submit-rating", passenger.Token, map[string]any{
		"rideId":       rideID,
		"targetUserId": driver.User.ID,
		"rating":       5,
		"review":       "smooth ride",
	}, nil)
	if err != nil {
		t.Fatalf("submit rating: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("submit rating: unexpected status %d", status)
	}

	var summary struct {
		Summary struct {
			Count   int     `json:"count"`
			Average float64 `json:"average"`
		} `json:"summary"`
	}
	status, err = doJSON(http.MethodGet, baseURL+"/api/ratings/users/"+driver.User.ID+"/summary", passenger.Token, nil, &summary)
	if err != nil {
		t.Fatalf("rating summary: %v", err)
	}
	if status != http.StatusOK || summary.Summary.Count != 1 || summary.Summary.Average != 5 {
		t.Fatalf("rating summary: status %d, %+v", status, summary.Summary)
	}
}

type session struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func signIn(baseURL, mobile, role string) (session, error) {
	status, err := doJSON(http.MethodPost, baseURL+"/api/auth/send-otp", "", map[string]string{
		"mobile": mobile,
		"role":   role,
	}, nil)
	if err != nil {
		return session{}, err
	}
	if status != http.StatusOK {
		return session{}, fmt.Errorf("send-otp: unexpected status %d", status)
	}

	code, err := issuedCode(mobile)
	if err != nil {
		return session{}, err
	}

	var out session
	status, err = doJSON(http.MethodPost, baseURL+"/api/auth/verify-otp", "", map[string]string{
		"mobile": mobile,
		"otp":    code,
	}, &out)
	if err != nil {
		return session{}, err
	}
	if status != http.StatusOK || out.Token == "" {
		return session{}, fmt.Errorf("verify-otp: unexpected status %d", status)
	}
	return out, nil
}

// issuedCode reads the pending sign-in code straight from the users table.
func issuedCode(mobile string) (string, error) {
	conn, err := sql.Open("postgres", db.PostgresURL(config.LoadConfig()))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	var code sql.NullString
	if err := conn.QueryRow("SELECT otp FROM users WHERE mobile = $1", mobile).Scan(&code); err != nil {
		return "", err
	}
	if !code.Valid || code.String == "" {
		return "", fmt.Errorf("no code stored for %s", mobile)
	}
	return code.String, nil
}

func doJSON(method, url, token string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func waitForPostgres(ctx context.Context) error {
	conn, err := sql.Open("postgres", db.PostgresURL(config.LoadConfig()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")
	migrator, err := migrate.New(migrationsURL, db.PostgresURL(config.LoadConfig()))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_BACKEND", config.StorePostgres)
	_ = os.Setenv("MQ_BACKEND", config.MQLog)
	_ = os.Setenv("REDIS_URL", "redis://localhost:6379/0")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "rideshare")
	_ = os.Setenv("DB_PASSWORD", "rideshare")
	_ = os.Setenv("DB_NAME", "rideshare")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("LOG_LEVEL", "warn")
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(ctx, cfg, logging.NewLogger(cfg.Log))
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
