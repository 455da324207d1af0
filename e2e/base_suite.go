package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.HTTPAddr == "" {
		s.T().Skip("E2E_HTTP_ADDR is not set")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Call sends a JSON request as user and returns the status and raw body.
func (s *BaseSuite) Call(method, path, user string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, strings.TrimRight(s.Config.HTTPAddr, "/")+path, reader)
	s.Require().NoError(err)
	r.Header.Set("Content-Type", "application/json")
	if user != "" {
		r.Header.Set("User", user)
	}

	start := time.Now()
	resp, err := s.client.Do(r)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	line := fmt.Sprintf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		line += "\n" + string(raw)
	}
	s.T().Log(line)
	return resp.StatusCode, raw
}

// WithHealth provides a health client within a contextual test step
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	s.Step(s.T(), name)
	conn, err := grpc.NewClient(s.Config.GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GrpcAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
