package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health Check
	checkEndpoint("GET", "/health", nil, 200)

	// 2. Create Holdings
	equityID := createHolding(map[string]interface{}{
		"asset_class": "equity",
		"symbol":      "AAPL",
		"quantity":    "3",
		"cost_basis":  "150",
		"sector":      "Tech",
		"country":     "US",
	})
	fmt.Printf("Created equity holding: %s\n", equityID)
	cryptoID := createHolding(map[string]interface{}{
		"asset_class": "crypto",
		"symbol":      "BTC",
		"quantity":    "0.25",
		"cost_basis":  "40000",
	})
	fmt.Printf("Created crypto holding: %s\n", cryptoID)

	// 3. Validate a symbol
	checkEndpoint("POST", "/symbols/validate", map[string]interface{}{
		"symbol":      "gold",
		"asset_class": "metal",
	}, 200)

	// 4. Refresh prices
	checkEndpoint("POST", "/refresh", nil, 200)

	// 5. Summary and quotes
	checkEndpoint("GET", "/summary", nil, 200)
	checkEndpoint("GET", "/quotes", nil, 200)

	// 6. History (coingecko needs no key)
	checkEndpoint("GET", "/history/crypto/BTC?days=7", nil, 200)

	// 7. Update the equity holding
	checkEndpoint("PUT", "/holdings/"+equityID, map[string]interface{}{
		"asset_class": "equity",
		"symbol":      "AAPL",
		"quantity":    "5",
		"cost_basis":  "150",
	}, 200)

	// 8. Clear the price cache, summary must still answer
	checkEndpoint("DELETE", "/cache/prices", nil, 200)
	checkEndpoint("GET", "/summary", nil, 200)

	// 9. Clean up
	checkEndpoint("DELETE", "/holdings/"+equityID, nil, 200)
	checkEndpoint("DELETE", "/holdings/"+cryptoID, nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) {
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
}

func createHolding(body map[string]interface{}) string {
	fmt.Println("Creating holding...")
	jsonBody, _ := json.Marshal(body)
	resp, err := http.Post(baseURL+"/holdings", "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Fatalf("Create holding failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		respBody, _ := io.ReadAll(resp.Body)
		log.Fatalf("Create holding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var res map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&res)
	id, _ := res["id"].(string)
	return id
}
