package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

// testRunStore exercises RunStore against any backend.
func testRunStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateAndGetRun", func(t *testing.T) {
		run := &Run{Network: "bsc", ChainID: 56, ExplorerURL: "https://api.bscscan.com/api"}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		if run.ID == "" || run.StartedAt == "" {
			t.Fatalf("CreateRun() did not fill ID/StartedAt: %+v", run)
		}

		for _, r := range []ResultRecord{
			{RunID: run.ID, File: "TokenA.json", Address: "0x000000000000000000000000000000000000dEaD", Contract: "contracts/TokenA.sol:TokenA", Outcome: "already-verified"},
			{RunID: run.ID, File: "ProxyB.json", Outcome: "skipped", Reason: "proxy"},
		} {
			if err := store.RecordResult(ctx, &r); err != nil {
				t.Fatalf("RecordResult() error = %v", err)
			}
		}

		got, err := store.GetRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if got.Status != RunRunning {
			t.Errorf("GetRun().Status = %v, want %v", got.Status, RunRunning)
		}
		if got.ChainID != 56 {
			t.Errorf("GetRun().ChainID = %v, want 56", got.ChainID)
		}
		if len(got.Results) != 2 {
			t.Fatalf("GetRun().Results len = %d, want 2", len(got.Results))
		}
		// ordered by file
		if got.Results[0].File != "ProxyB.json" || got.Results[1].Reason != "" {
			t.Errorf("GetRun().Results = %+v", got.Results)
		}
		if got.FinishedAt != "" {
			t.Errorf("GetRun().FinishedAt = %q, want empty", got.FinishedAt)
		}
	})

	t.Run("FinishRun", func(t *testing.T) {
		run := &Run{Network: "bscTestnet", ChainID: 97}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}

		run.Status = RunCompleted
		run.Counts = RunCounts{Total: 3, AlreadyVerified: 1, SubmittedOK: 1, Skipped: 1}
		if err := store.FinishRun(ctx, run); err != nil {
			t.Fatalf("FinishRun() error = %v", err)
		}

		got, err := store.GetRun(ctx, run.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != RunCompleted || got.Counts != run.Counts {
			t.Errorf("GetRun() = %+v, want status %v counts %+v", got, RunCompleted, run.Counts)
		}
		if got.FinishedAt == "" {
			t.Error("GetRun().FinishedAt is empty")
		}

		if err := store.FinishRun(ctx, run); !errors.Is(err, ErrRunFinished) {
			t.Errorf("FinishRun() twice error = %v, want ErrRunFinished", err)
		}
	})

	t.Run("MissingRun", func(t *testing.T) {
		missing := "00000000-0000-0000-0000-000000000000"
		if _, err := store.GetRun(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetRun() error = %v, want ErrNotFound", err)
		}
		err := store.FinishRun(ctx, &Run{ID: missing, Status: RunCompleted})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("FinishRun() error = %v, want ErrNotFound", err)
		}
		err = store.RecordResult(ctx, &ResultRecord{RunID: missing, File: "x.json", Outcome: "failed"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("RecordResult() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListRuns", func(t *testing.T) {
		base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			run := &Run{
				Network:   "arbitrum",
				ChainID:   42161,
				StartedAt: base.Add(time.Duration(i) * time.Minute).Format(timeFormat),
			}
			if err := store.CreateRun(ctx, run); err != nil {
				t.Fatal(err)
			}
		}

		page, err := store.ListRuns(ctx, RunFilter{Network: "arbitrum"}, PaginationParams{Limit: 3})
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(page.Data) != 3 || !page.HasMore {
			t.Fatalf("ListRuns() len = %d hasMore = %v, want 3 true", len(page.Data), page.HasMore)
		}
		if page.Data[0].StartedAt <= page.Data[1].StartedAt {
			t.Errorf("ListRuns() not newest first: %s, %s", page.Data[0].StartedAt, page.Data[1].StartedAt)
		}

		next, err := store.ListRuns(ctx, RunFilter{Network: "arbitrum"}, PaginationParams{Limit: 3, Cursor: page.NextCursor})
		if err != nil {
			t.Fatalf("ListRuns() page 2 error = %v", err)
		}
		if len(next.Data) != 2 || next.HasMore {
			t.Errorf("ListRuns() page 2 len = %d hasMore = %v, want 2 false", len(next.Data), next.HasMore)
		}

		running, err := store.ListRuns(ctx, RunFilter{Status: RunCompleted}, PaginationParams{})
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range running.Data {
			if r.Status != RunCompleted {
				t.Errorf("ListRuns(status=completed) returned %s", r.Status)
			}
		}
	})
}

// testAPIKeyStore exercises APIKeyStore against any backend.
func testAPIKeyStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateAndValidateAPIKey", func(t *testing.T) {
		key, err := store.CreateAPIKey(ctx, "test-key")
		if err != nil {
			t.Fatalf("CreateAPIKey() error = %v", err)
		}

		if key == "" {
			t.Fatal("CreateAPIKey() returned empty key")
		}

		apiKey, err := store.ValidateAPIKey(ctx, key)
		if err != nil {
			t.Fatalf("ValidateAPIKey() error = %v", err)
		}

		if apiKey.Name != "test-key" {
			t.Errorf("ValidateAPIKey().Name = %v, want test-key", apiKey.Name)
		}
	})

	t.Run("InvalidAPIKey", func(t *testing.T) {
		_, err := store.ValidateAPIKey(ctx, "invalid-key")
		if err == nil {
			t.Error("ValidateAPIKey() should return error for invalid key")
		}
	})

	t.Run("RevokeAPIKey", func(t *testing.T) {
		key, err := store.CreateAPIKey(ctx, "ci")
		if err != nil {
			t.Fatal(err)
		}
		ak, err := store.ValidateAPIKey(ctx, key)
		if err != nil {
			t.Fatal(err)
		}

		if err := store.RevokeAPIKey(ctx, ak.ID); err != nil {
			t.Fatalf("RevokeAPIKey() error = %v", err)
		}
		if _, err := store.ValidateAPIKey(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("ValidateAPIKey() after revoke error = %v, want ErrNotFound", err)
		}
		if err := store.RevokeAPIKey(ctx, ak.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("RevokeAPIKey() twice error = %v, want ErrNotFound", err)
		}

		keys, err := store.ListAPIKeys(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var found bool
		for _, k := range keys {
			if k.ID == ak.ID {
				found = true
				if k.RevokedAt == "" {
					t.Error("ListAPIKeys() revoked key has empty RevokedAt")
				}
			}
		}
		if !found {
			t.Errorf("ListAPIKeys() missing key %s", ak.ID)
		}
	})
}
