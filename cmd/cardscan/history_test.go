package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardscan/internal/service"
	"github.com/Veraticus/cardscan/internal/testutil"
)

func TestShowHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now()
	db.SeedScan("old.png", "4000056655665556", now.Add(-48*time.Hour))
	db.SeedScan("blank.png", "", now.Add(-time.Hour))
	db.SeedScan("new.png", "4242424242424242", now)

	var out bytes.Buffer
	require.NoError(t, showHistory(context.Background(), db.Storage, service.ScanFilter{Limit: 2}, &out))

	text := out.String()
	assert.Contains(t, text, "Scan History")
	assert.Contains(t, text, "2 scans")
	assert.Contains(t, text, "new.png")
	assert.Contains(t, text, "blank.png")
	assert.NotContains(t, text, "old.png")
	assert.Contains(t, text, "•••• •••• •••• 4242")

	out.Reset()
	require.NoError(t, showHistory(context.Background(), db.Storage, service.ScanFilter{FoundOnly: true}, &out))
	assert.NotContains(t, out.String(), "blank.png")
	assert.Contains(t, out.String(), "5556")
}

func TestPruneHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now()
	db.SeedScan("old.png", "4000056655665556", now.Add(-48*time.Hour))
	db.SeedScan("new.png", "4242424242424242", now)

	var out bytes.Buffer
	require.NoError(t, pruneHistory(context.Background(), db.Storage, now.Add(-24*time.Hour), &out))
	assert.Contains(t, out.String(), "Deleted 1 scans")

	records, err := db.Storage.ListScans(context.Background(), service.ScanFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new.png", records[0].Source)
}
