package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Simple representation to check snapshot structure
type sessionProbe struct {
	ID     string          `json:"ID"`
	Combat json.RawMessage `json:"Combat"`
}

func main() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("Failed to parse Redis URL:", err)
	}

	client := redis.NewClient(opt)
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	fmt.Println("Connected to Redis:", redisURL)
	fmt.Println("Scanning session snapshots...")

	iter := client.Scan(ctx, 0, "game_session:*", 0).Iterator()

	var corruptedKeys []string
	var checkedCount int
	liveIDs := make(map[string]bool)

	for iter.Next(ctx) {
		key := iter.Val()
		checkedCount++

		data, err := client.Get(ctx, key).Result()
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", key, err)
			continue
		}

		var probe sessionProbe
		if err := json.Unmarshal([]byte(data), &probe); err != nil {
			fmt.Printf("✗ Corrupted JSON in %s\n", key)
			corruptedKeys = append(corruptedKeys, key)
			continue
		}

		// Combat was a bare bool before it became a state object
		if probe.Combat != nil {
			combatStr := strings.TrimSpace(string(probe.Combat))
			if combatStr != "null" && !strings.HasPrefix(combatStr, "{") {
				fmt.Printf("✗ Old format detected in %s: Combat is %s\n", key, combatStr)
				corruptedKeys = append(corruptedKeys, key)
				continue
			}
		}

		liveIDs[probe.ID] = true
	}

	if err := iter.Err(); err != nil {
		log.Fatal("Error during scan:", err)
	}

	// Index entries whose snapshot is gone
	indexedIDs, err := client.ZRange(ctx, "game_sessions:last_active", 0, -1).Result()
	if err != nil {
		log.Fatal("Failed to read last-active index:", err)
	}

	var orphanedIDs []string
	for _, id := range indexedIDs {
		if !liveIDs[id] {
			fmt.Printf("✗ Orphaned index entry: %s has no snapshot\n", id)
			orphanedIDs = append(orphanedIDs, id)
		}
	}

	fmt.Printf("\nChecked %d snapshots: %d corrupted, %d orphaned index entries\n",
		checkedCount, len(corruptedKeys), len(orphanedIDs))

	if len(corruptedKeys) == 0 && len(orphanedIDs) == 0 {
		fmt.Println("No problems found!")
		return
	}

	fmt.Print("\nDo you want to DELETE these entries? (yes/no): ")
	var response string
	fmt.Scanln(&response)

	if response != "yes" {
		fmt.Println("Aborted - no changes made")
		return
	}

	for _, key := range corruptedKeys {
		if err := client.Del(ctx, key).Err(); err != nil {
			fmt.Printf("Failed to delete %s: %v\n", key, err)
		} else {
			fmt.Printf("Deleted %s\n", key)
		}
	}
	for _, id := range orphanedIDs {
		if err := client.ZRem(ctx, "game_sessions:last_active", id).Err(); err != nil {
			fmt.Printf("Failed to remove index entry %s: %v\n", id, err)
		} else {
			fmt.Printf("Removed index entry %s\n", id)
		}
	}
	fmt.Println("\nCleanup complete!")
}
