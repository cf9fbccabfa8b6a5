package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/frame"
	"github.com/Veraticus/cardscan/internal/service"
	"github.com/Veraticus/cardscan/internal/testutil"
	"github.com/Veraticus/cardscan/internal/worker"
)

func cardFactory() *testutil.StubFactory {
	return &testutil.StubFactory{
		Grid: testutil.GridOutput(map[testutil.Cell]float32{
			{Row: 10, Col: 0}:  0.9,
			{Row: 10, Col: 12}: 0.9,
			{Row: 10, Col: 24}: 0.9,
			{Row: 10, Col: 36}: 0.9,
		}),
		Digits: testutil.WordOutput("4242"),
	}
}

func cardDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		writePNG(t, filepath.Join(dir, name), testutil.CardImage(480, 302))
	}
	return dir
}

func TestScanImages(t *testing.T) {
	dir := cardDir(t, "a.png", "b.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.png"), []byte("garbage"), 0o600))

	db := testutil.SetupTestDB(t)
	f := cardFactory()
	var out bytes.Buffer
	deps := scanDeps{
		loader:      testutil.StaticLoader{},
		factory:     f.Factory(),
		store:       db.Storage,
		out:         &out,
		progressOut: io.Discard,
	}

	summary, err := scanImages(context.Background(), deps, scanOptions{threads: 1}, []string{dir})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Unrecoverable)

	text := out.String()
	assert.Contains(t, text, "•••• •••• •••• 4242")
	assert.Contains(t, text, "failed to decode image")
	assert.NotContains(t, text, "4242 4242 4242 4242")

	records, err := db.Storage.ListScans(context.Background(), service.ScanFilter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.NotContains(t, rec.MaskedNumber, "42424242")
	}

	found, err := db.Storage.ListScans(context.Background(), service.ScanFilter{FoundOnly: true})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "4242", found[0].Last4)
	assert.Len(t, found[0].Boxes, 4)
	assert.Equal(t, 1, found[0].Attempts)
}

func TestScanImages_RevealWithoutStore(t *testing.T) {
	dir := cardDir(t, "card.png")
	f := cardFactory()
	var out bytes.Buffer
	deps := scanDeps{
		loader:      testutil.StaticLoader{},
		factory:     f.Factory(),
		out:         &out,
		progressOut: io.Discard,
	}

	summary, err := scanImages(context.Background(), deps, scanOptions{reveal: true, warmUp: true, threads: 1}, []string{filepath.Join(dir, "card.png")})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Found)
	assert.Contains(t, out.String(), "4242 4242 4242 4242")
	assert.Equal(t, 2, f.Builds, "warm-up and scan share one pair of engines")
}

func TestScanImages_RawFrames(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "portrait.png"), testutil.CardImage(302, 480))

	f := cardFactory()
	var out bytes.Buffer
	deps := scanDeps{
		loader:      testutil.StaticLoader{},
		factory:     f.Factory(),
		out:         &out,
		progressOut: io.Discard,
	}
	opts := scanOptions{raw: true, orientation: frame.Rotate90, roiCenter: frame.DefaultROICenter, threads: 1}

	summary, err := scanImages(context.Background(), deps, opts, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Found)
}

func TestScanImages_Unrecoverable(t *testing.T) {
	dir := cardDir(t, "a.png", "b.png")
	f := cardFactory()
	f.SetFaults(100, 0)

	db := testutil.SetupTestDB(t)
	var out bytes.Buffer
	deps := scanDeps{
		loader:      testutil.StaticLoader{},
		factory:     f.Factory(),
		store:       db.Storage,
		out:         &out,
		progressOut: io.Discard,
	}

	summary, err := scanImages(context.Background(), deps, scanOptions{threads: 1}, []string{dir})
	require.NoError(t, err, "per-image faults are reported, not returned")
	assert.Equal(t, 2, summary.Unrecoverable)
	assert.Equal(t, 2, summary.Failed)
	assert.Contains(t, out.String(), "recognition failed")

	records, err := db.Storage.ListScans(context.Background(), service.ScanFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Unrecoverable)
	assert.Equal(t, 2, records[0].Attempts)
}

func TestScanImages_NoImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o600))

	deps := scanDeps{loader: testutil.StaticLoader{}, factory: cardFactory().Factory(), out: io.Discard, progressOut: io.Discard}
	_, err := scanImages(context.Background(), deps, scanOptions{threads: 1}, []string{dir})

	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "no images found", userErr.UserMessage)
}

func TestScanImages_Cancelled(t *testing.T) {
	dir := cardDir(t, "a.png", "b.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deps := scanDeps{loader: testutil.StaticLoader{}, factory: cardFactory().Factory(), out: io.Discard, progressOut: io.Discard}
	summary, err := scanImages(ctx, deps, scanOptions{threads: 1}, []string{dir})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Total)
}

func TestOutcomeOf(t *testing.T) {
	o := outcomeOf(worker.Prediction{
		Source:   "front.png",
		Number:   "4242424242424242",
		Found:    true,
		Attempts: 1,
		Expiry:   true,
	})
	assert.Equal(t, "4242424242424242", o.number)
	assert.True(t, o.record.HasExpiry)
	assert.Equal(t, "4242", o.record.Last4)
	assert.False(t, o.record.Unrecoverable)
}
