package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"heatbridge/internal/logging"
	"heatbridge/internal/qvantum"
)

// heatbridge-probe signs in to the Qvantum cloud with the given credentials
// and dumps what the account can see. Useful for verifying credentials and
// inspecting raw payloads before pointing the bridge at an account.
func main() {
	username := flag.String("username", "", "Qvantum account email (required)")
	password := flag.String("password", "", "Qvantum account password (required)")
	apiKey := flag.String("api-key", "", "Identity toolkit API key (required)")
	deviceID := flag.String("device", "", "Device ID to inspect (default: first device)")
	elevate := flag.Bool("elevate", false, "Run the access elevation handshake")
	metrics := flag.Bool("metrics", false, "Fetch the full internal metric set")
	flag.Parse()

	if *username == "" || *password == "" || *apiKey == "" {
		log.Fatal("Error: -username, -password and -api-key are required")
	}

	logger := logging.NewLogger(logging.LoggerConfig{Format: "text", Level: logging.ParseLevel("warn")})
	client := qvantum.NewClient(qvantum.Credentials{
		Email:    *username,
		Password: *password,
		APIKey:   *apiKey,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Println("Signing in...")
	if err := client.Authenticate(ctx); err != nil {
		log.Fatalf("Sign-in failed: %v", err)
	}
	fmt.Println("Sign-in OK")

	devices, err := client.GetDevices(ctx)
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}
	if len(devices) == 0 {
		log.Fatal("No devices on this account")
	}

	fmt.Printf("\nDevices (%d):\n", len(devices))
	for _, device := range devices {
		fmt.Printf("  %s  %s (model %s, serial %s)\n", device.ID, device.Name, device.Model, device.Serial)
	}

	target := devices[0]
	if *deviceID != "" {
		found := false
		for _, device := range devices {
			if device.ID == *deviceID {
				target = device
				found = true
				break
			}
		}
		if !found {
			log.Fatalf("Device %s not found on this account", *deviceID)
		}
	}
	fmt.Printf("\nInspecting device %s\n", target.ID)

	dump := func(label string, fetch func() (any, error)) {
		value, err := fetch()
		if err != nil {
			fmt.Printf("\n%s: ERROR: %v\n", label, err)
			return
		}
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			fmt.Printf("\n%s: encode error: %v\n", label, err)
			return
		}
		fmt.Printf("\n%s:\n%s\n", label, data)
	}

	dump("Access level", func() (any, error) { return client.GetAccessLevel(ctx, target.ID) })
	dump("Status", func() (any, error) { return client.GetStatus(ctx, target.ID) })
	dump("Settings", func() (any, error) { return client.GetSettings(ctx, target.ID) })
	dump("Alarms", func() (any, error) { return client.GetAlarms(ctx, target.ID) })

	if *metrics {
		dump("Internal metrics", func() (any, error) {
			return client.GetInternalMetrics(ctx, target.ID, qvantum.MetricNames)
		})
	} else {
		dump("Fast metrics", func() (any, error) {
			return client.GetInternalMetrics(ctx, target.ID, qvantum.FastMetricNames)
		})
	}

	if *elevate {
		fmt.Println("\nRunning access elevation handshake...")
		level, err := client.ElevateAccess(ctx, target.ID)
		if err != nil {
			log.Fatalf("Elevation failed: %v", err)
		}
		fmt.Printf("Write access level: %d (elevated: %v, expires %s)\n",
			level.WriteAccessLevel, level.Elevated(), level.ExpiresAt)
		if !level.Elevated() {
			os.Exit(1)
		}
	}
}
