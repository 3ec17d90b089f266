// Command smoke drives a running relief-api through the assignment scenario
// and checks gRPC health.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"relief.org/internal/obs"
	"relief.org/internal/relief"
)

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *client) expect(ctx context.Context, want int, method, path string, body, out any) {
	code, err := c.call(ctx, method, path, body, out)
	if err != nil {
		fail("%s %s: %v", method, path, err)
	}
	if code != want {
		fail("%s %s: expected %d, got %d", method, path, want, code)
	}
}

func fail(format string, args ...any) {
	obs.Logger().Error("smoke test failed", "reason", fmt.Sprintf(format, args...))
	os.Exit(1)
}

func main() {
	base := envOr("RELIEF_SMOKE_URL", "http://localhost:8080")
	grpcAddr := envOr("RELIEF_SMOKE_GRPC_ADDR", "localhost:9090")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}
	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])

	c.expect(ctx, http.StatusOK, http.MethodPost, "/api/auth/register",
		map[string]string{"full_name": "Smoke Test", "email": email, "password": "pw123"}, nil)
	var tok struct {
		Token string `json:"token"`
	}
	c.expect(ctx, http.StatusOK, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": "pw123"}, &tok)
	c.token = tok.Token

	var vol relief.Volunteer
	c.expect(ctx, http.StatusCreated, http.MethodPost, "/api/volunteers",
		map[string]string{"full_name": "Smoke Volunteer", "email": email}, &vol)
	var inc relief.Incident
	c.expect(ctx, http.StatusCreated, http.MethodPost, "/api/incidents",
		map[string]any{"type": "Smoke", "severity": "Low"}, &inc)

	var asg relief.Assignment
	c.expect(ctx, http.StatusCreated, http.MethodPost, "/api/assignments",
		map[string]string{"volunteer_id": vol.ID, "incident_id": inc.ID, "task_description": "smoke"}, &asg)
	if asg.Status != relief.AssignmentAssigned || asg.CompletedAt != nil {
		fail("unexpected new assignment: %+v", asg)
	}
	c.expect(ctx, http.StatusOK, http.MethodPut, "/api/assignments/"+asg.ID+"/complete",
		map[string]bool{"completed": true}, &asg)
	if asg.Status != relief.AssignmentCompleted || asg.CompletedAt == nil || asg.CompletedAt.Before(asg.AssignedAt) {
		fail("unexpected completed assignment: %+v", asg)
	}

	c.expect(ctx, http.StatusBadRequest, http.MethodPost, "/api/assignments",
		map[string]string{"volunteer_id": uuid.NewString(), "incident_id": uuid.NewString(), "task_description": "ghost"}, nil)

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fail("dial grpc %s: %v", grpcAddr, err)
	}
	defer conn.Close()
	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		fail("grpc health: %v", err)
	}
	if hc.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		fail("grpc health status %v", hc.GetStatus())
	}

	obs.Logger().Info("smoke test passed", "assignment", asg.ID, "volunteer", vol.ID, "incident", inc.ID)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
