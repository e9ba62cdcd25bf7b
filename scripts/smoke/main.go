// Command smoke probes a running API instance and reports the status and
// latency of each configured endpoint. It exits non-zero when a critical
// target fails, which makes it usable as a deploy gate.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	AuthRole  string `json:"auth_role"`
	Critical  bool   `json:"critical"`
	MaxMillis int64  `json:"max_millis"`
}

type config struct {
	Targets []target         `json:"targets"`
	Logins  map[string]login `json:"logins"`
}

type login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type result struct {
	Target   target
	Status   int
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base        string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	cfg, err := loadConfig(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	tokens := make(map[string]string, len(cfg.Logins))
	for role, creds := range cfg.Logins {
		token, err := obtainToken(client, base, creds)
		if err != nil {
			log.Fatalf("login as %s failed: %v", role, err)
		}
		tokens[role] = token
	}

	var failures int
	results := make([]result, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		res := probe(client, base, t, tokens)
		if !passed(res) && t.Critical {
			failures++
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Critical failures: %d\n", failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return &cfg, nil
}

func obtainToken(client *http.Client, base string, creds login) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": creds.Email, "password": creds.Password})
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(base, "/") + "/api/v1/auth/login"
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}
	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Data.AccessToken == "" {
		return "", fmt.Errorf("login response missing access token")
	}
	return body.Data.AccessToken, nil
}

func probe(client *http.Client, base string, tgt target, tokens map[string]string) result {
	res := result{Target: tgt}

	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		res.Err = err
		return res
	}
	if tgt.AuthRole != "" {
		token, ok := tokens[tgt.AuthRole]
		if !ok {
			res.Err = fmt.Errorf("no login configured for role %q", tgt.AuthRole)
			return res
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	res.Status = resp.StatusCode
	return res
}

func passed(res result) bool {
	if res.Err != nil {
		return false
	}
	want := res.Target.Status
	if want == 0 {
		want = http.StatusOK
	}
	if res.Status != want {
		return false
	}
	if res.Target.MaxMillis > 0 && res.Duration.Milliseconds() > res.Target.MaxMillis {
		return false
	}
	return true
}

func printReport(results []result) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, res := range results {
		label := "OK"
		if !passed(res) {
			label = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", label, res.Target.Method, res.Target.Path)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
			continue
		}
		fmt.Printf("  Status: %d (%s)\n", res.Status, res.Duration)
	}
}
