package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RobsonDevCode/nugetexplorer/internal/clients/models"
	"github.com/RobsonDevCode/nugetexplorer/internal/configuration"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const userAgent = "nugetexplorer"

var ErrPackageNotFound = errors.New("package not found")

func newHttpClient(settings configuration.HttpClientSettings) *http.Client {
	return &http.Client{
		Timeout: settings.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func newRateLimiter(settings configuration.HttpClientSettings) *rate.Limiter {
	if settings.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	return rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), settings.Burst)
}

func newCircuitBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    3 * time.Second,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
}

func handleClientError(response *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(response.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read client error status code %d: %w", response.StatusCode, err)
	}

	var clientError models.Error
	if err := json.Unmarshal(body, &clientError); err == nil && clientError.Message != "" {
		return fmt.Errorf("client response error status: %d, %s", response.StatusCode, clientError.Message)
	}

	return fmt.Errorf("client response error status: %d", response.StatusCode)
}
