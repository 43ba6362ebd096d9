// Manual smoke client for a running analogd instance. It walks the
// HTTP endpoints end to end and then streams a few frames from the
// scope websocket. Not part of the automated test suite; run it
// against a live server:
//
//	go run ./test
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// BenchClient exercises the analogd HTTP and websocket API.
type BenchClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewBenchClient(baseURL string) *BenchClient {
	return &BenchClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *BenchClient) postJSON(path string, body interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Post(c.BaseURL+path, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func (c *BenchClient) get(path string) (map[string]interface{}, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (map[string]interface{}, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", string(body), err)
	}
	if resp.StatusCode != http.StatusOK {
		return parsed, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return parsed, nil
}

func (c *BenchClient) TestHealth() error {
	resp, err := c.get("/health")
	if err != nil {
		return err
	}
	fmt.Printf("   server status: %v\n", resp["status"])
	return nil
}

func (c *BenchClient) TestDevices() error {
	resp, err := c.get("/api/v1/devices")
	if err != nil {
		return err
	}
	data := resp["data"].(map[string]interface{})
	fmt.Printf("   %v device(s) attached\n", data["count"])
	return nil
}

func (c *BenchClient) TestWaveGen() error {
	_, err := c.postJSON("/api/v1/wavegen/play", map[string]interface{}{
		"output":    0,
		"signal":    "sine",
		"frequency": 1000.0,
		"amplitude": 1.0,
	})
	return err
}

func (c *BenchClient) TestAcquire() error {
	resp, err := c.postJSON("/api/v1/scope/acquire", map[string]interface{}{
		"input":       0,
		"sample_rate": 100000.0,
		"buffer_size": 1024,
		"range":       5.0,
	})
	if err != nil {
		return err
	}
	data := resp["data"].(map[string]interface{})
	fmt.Printf("   dc=%.4f V, ac rms=%.4f V\n", data["dc_average"], data["ac_rms"])
	return nil
}

func (c *BenchClient) TestSupplies() error {
	if _, err := c.postJSON("/api/v1/supplies", map[string]interface{}{
		"positive": 3.3,
		"negative": -3.3,
	}); err != nil {
		return err
	}
	resp, err := c.get("/api/v1/supplies")
	if err != nil {
		return err
	}
	data := resp["data"].(map[string]interface{})
	fmt.Printf("   rails: %+v V / %+v V\n", data["positive_voltage"], data["negative_voltage"])
	return nil
}

func (c *BenchClient) TestSMU() error {
	if _, err := c.postJSON("/api/v1/smu/channels", map[string]interface{}{
		"channel": 0,
		"mode":    "svmi",
		"value":   2.5,
	}); err != nil {
		return err
	}
	resp, err := c.get("/api/v1/smu/read?channel=0&count=100")
	if err != nil {
		return err
	}
	data := resp["data"].(map[string]interface{})
	fmt.Printf("   mean: %.4f V, %.6f A\n", data["mean_voltage"], data["mean_current"])
	return nil
}

// TestStream opens the scope websocket and prints frames until
// interrupted or ten frames arrive.
func (c *BenchClient) TestStream() error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	wsURL := url.URL{Scheme: "ws", Host: u.Host, Path: "/ws/scope"}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{
		"input":       0,
		"sample_rate": 100000.0,
		"buffer_size": 256,
		"interval_ms": 200,
	}); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			var frame map[string]interface{}
			if err := conn.ReadJSON(&frame); err != nil {
				log.Println("stream read:", err)
				return
			}
			fmt.Printf("   frame %v: ac rms=%.4f V\n", frame["sequence"], frame["ac_rms"])
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
	return nil
}

func (c *BenchClient) RunAll() {
	fmt.Printf("target server: %s\n", c.BaseURL)
	fmt.Println(strings.Repeat("=", 50))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"health", c.TestHealth},
		{"devices", c.TestDevices},
		{"wavegen", c.TestWaveGen},
		{"acquire", c.TestAcquire},
		{"supplies", c.TestSupplies},
		{"smu", c.TestSMU},
	}

	passed := 0
	for _, test := range tests {
		if err := test.fn(); err != nil {
			fmt.Printf("FAIL %s: %v\n", test.name, err)
		} else {
			fmt.Printf("ok   %s\n", test.name)
			passed++
		}
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("%d/%d passed\n", passed, len(tests))

	if passed == len(tests) {
		fmt.Println("streaming scope frames (Ctrl+C to stop)")
		if err := c.TestStream(); err != nil {
			fmt.Printf("FAIL stream: %v\n", err)
		}
	}
}

func main() {
	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}
	NewBenchClient(base).RunAll()
}
