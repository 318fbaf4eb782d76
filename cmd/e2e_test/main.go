package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"investdash/internal/handlers"
)

var (
	baseURL = envOr("BASE_URL", "http://localhost:8000")
	token   string
)

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// SECRET_KEY lets the run act as a dedicated user instead of the global scope
	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		var err error
		token, err = handlers.IssueToken(secret, time.Now().Unix(), 10*time.Minute)
		if err != nil {
			log.Fatalf("Issue token failed: %v", err)
		}
	}
	symbol := fmt.Sprintf("E2E%d", time.Now().Unix())

	// 1. Health Check
	checkEndpoint("GET", "/health", nil, 200)

	// 2. Buy twice, a month apart
	first := create(symbol, "10", "100", time.Now().AddDate(0, -1, 0))
	create(symbol, "5", "120", time.Now())

	// 3. Oversell is refused
	checkEndpoint("POST", "/api/investments/sell", map[string]interface{}{
		"symbol": symbol, "amount": "100", "sale_price": "130",
	}, 400)

	// 4. Sell part of the holding
	checkEndpoint("POST", "/api/investments/sell", map[string]interface{}{
		"symbol": symbol, "amount": "6", "sale_price": "130",
	}, 201)

	// 5. Price it and read the derived views
	checkEndpoint("PUT", "/api/prices/"+symbol, map[string]interface{}{"current_price": "140"}, 200)
	checkEndpoint("GET", "/api/portfolio/positions", nil, 200)
	checkEndpoint("GET", "/api/portfolio/overview", nil, 200)
	checkEndpoint("GET", "/api/portfolio/earnings?aggregate_by=month", nil, 200)
	checkEndpoint("GET", "/api/investments?symbol="+symbol, nil, 200)

	// 6. Update, then try deleting a buy the sale depends on
	path := "/api/investments/" + strconv.FormatInt(first, 10)
	checkEndpoint("PUT", path, map[string]interface{}{"description": "e2e"}, 200)
	checkEndpoint("DELETE", path, nil, 400)

	// 7. Unknown record
	checkEndpoint("GET", "/api/investments/999999999", nil, 404)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) []byte {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody
}

func create(symbol, amount, price string, on time.Time) int64 {
	fmt.Printf("Buying %s %s...\n", amount, symbol)
	respBody := checkEndpoint("POST", "/api/investments", map[string]interface{}{
		"name":            symbol + " Test Corp",
		"symbol":          symbol,
		"investment_type": "stocks",
		"amount":          amount,
		"purchase_price":  price,
		"purchase_date":   on.Format("2006-01-02"),
	}, 201)

	var res struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(respBody, &res); err != nil {
		log.Fatalf("Decode buy response failed: %v", err)
	}
	return res.ID
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
