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

	"github.com/joho/godotenv"

	"campus-locator/internal/repository"
	"campus-locator/internal/services"
)

const pocketbaseURL = "http://127.0.0.1:8090"

var httpClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	fmt.Println("🚀 PocketBase Collection Setup Script")
	fmt.Println("=====================================")

	godotenv.Load()

	url := getEnv("POCKETBASE_URL", pocketbaseURL)
	token := getEnv("POCKETBASE_TOKEN", "")

	fmt.Printf("Connecting to: %s\n", url)

	if err := checkHealth(url); err != nil {
		fmt.Printf("❌ Cannot connect to PocketBase: %v\n", err)
		fmt.Printf("\nCheck with: curl %s/api/health\n", url)
		os.Exit(1)
	}

	if token == "" {
		fmt.Println("❌ POCKETBASE_TOKEN not set")
		fmt.Println("\nTo get a superuser token:")
		fmt.Printf("  curl -X POST %s/api/collections/_superusers/auth-with-password \\\n", url)
		fmt.Println("    -H \"Content-Type: application/json\" \\")
		fmt.Println("    -d '{\"identity\":\"admin@example.com\",\"password\":\"password123\"}'")
		os.Exit(1)
	}

	if err := testAuth(url, token); err != nil {
		fmt.Printf("❌ Auth test failed: %v\n", err)
		os.Exit(1)
	}

	collections := []struct {
		name   string
		fields []map[string]interface{}
	}{
		{"students", accountFields(false)},
		{"teachers", accountFields(true)},
		{"admins", accountFields(false)},
		{"presence", []map[string]interface{}{
			textField("current_location", false),
			dateField("last_active_time", false),
			{"name": "scans", "type": "json", "maxSize": 64 * 1024},
		}},
		{"scans", []map[string]interface{}{
			textField("user", true),
			textField("room", true),
			dateField("timestamp", true),
		}},
	}

	for _, col := range collections {
		fmt.Printf("\n📦 Creating collection: %s\n", col.name)
		if err := createCollection(url, token, col.name, col.fields); err != nil {
			fmt.Printf("   ⚠️  %v\n", err)
		} else {
			fmt.Printf("   ✅ Ready\n")
		}
	}

	if email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"); email != "" && password != "" {
		fmt.Printf("\n👤 Seeding administrator %s\n", email)
		if err := seedAdmin(url, token, email, password); err != nil {
			fmt.Printf("   ⚠️  %v\n", err)
		} else {
			fmt.Printf("   ✅ Approved\n")
		}
	}

	fmt.Println("\n🎉 Setup complete!")
	fmt.Printf("\nAccess Admin UI: %s/_/\n", url)
}

func seedAdmin(url, token, email, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := repository.NewPocketBaseStore(url, token)
	identity := repository.NewPocketBaseIdentity(store, getEnv("POCKETBASE_AUTH_COLLECTION", "users"))
	accounts := services.NewAccountService(
		identity,
		repository.NewAccountRepository(store),
		repository.NewPresenceRepository(store),
		nil,
		nil,
	)
	_, err := accounts.EnsureAdmin(ctx, email, password, getEnv("ADMIN_NAME", "Administrator"))
	return err
}

func accountFields(teacher bool) []map[string]interface{} {
	fields := []map[string]interface{}{
		textField("name", true),
		{"name": "email", "type": "email", "required": true},
		{
			"name":      "approval_status",
			"type":      "select",
			"required":  true,
			"maxSelect": 1,
			"values":    []string{"pending", "approved", "declined"},
		},
		dateField("created_at", false),
	}
	if teacher {
		fields = append(fields, textField("phone", false), textField("profession", false))
	}
	return fields
}

func textField(name string, required bool) map[string]interface{} {
	return map[string]interface{}{"name": name, "type": "text", "required": required}
}

func dateField(name string, required bool) map[string]interface{} {
	return map[string]interface{}{"name": name, "type": "date", "required": required}
}

func testAuth(baseURL, token string) error {
	req, _ := http.NewRequest("GET", baseURL+"/api/collections", nil)
	req.Header.Set("Authorization", token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	fmt.Println("✅ Authentication successful")
	return nil
}

func createCollection(baseURL, token, name string, fields []map[string]interface{}) error {
	createData := map[string]interface{}{
		"name":   name,
		"type":   "base",
		"fields": fields,
	}

	jsonData, _ := json.Marshal(createData)
	req, _ := http.NewRequest("POST", baseURL+"/api/collections", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest && (bytes.Contains(body, []byte("already exists")) || bytes.Contains(body, []byte("must be unique"))) {
		fmt.Printf("   Collection exists, adding missing fields...\n")
		return updateCollectionFields(baseURL, token, name, fields)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create failed: %s - %s", resp.Status, string(body))
	}

	fmt.Printf("   Created with %d fields\n", len(fields))
	return nil
}

func updateCollectionFields(baseURL, token, name string, fields []map[string]interface{}) error {
	collectionURL := fmt.Sprintf("%s/api/collections/%s", baseURL, name)
	req, _ := http.NewRequest("GET", collectionURL, nil)
	req.Header.Set("Authorization", token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get collection: %v", err)
	}

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var existing struct {
		Fields []map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(body, &existing); err != nil {
		return fmt.Errorf("failed to parse collection: %v", err)
	}

	known := make(map[string]bool)
	for _, f := range existing.Fields {
		if n, ok := f["name"].(string); ok {
			known[n] = true
		}
	}

	var missing []map[string]interface{}
	for _, field := range fields {
		if n, _ := field["name"].(string); !known[n] {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		fmt.Printf("   All fields already exist\n")
		return nil
	}

	jsonData, _ := json.Marshal(map[string]interface{}{"fields": append(existing.Fields, missing...)})
	req, _ = http.NewRequest("PATCH", collectionURL, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err = httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update failed: %s - %s", resp.Status, string(body))
	}

	fmt.Printf("   Added %d new fields\n", len(missing))
	return nil
}

func checkHealth(baseURL string) error {
	resp, err := httpClient.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %s", resp.Status)
	}

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("✅ PocketBase is running: %s\n", string(body))
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
