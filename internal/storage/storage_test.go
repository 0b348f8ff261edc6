package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lpValuer/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "valuations.jsonl")
	sink := NewJsonlStorage(path)

	first := []model.ValuationRecord{{RunID: "r1", BlockNumber: 10, TotalUSD: "12.5"}}
	second := []model.ValuationRecord{{RunID: "r1", BlockNumber: 20, TotalUSD: "13"}}
	if err := sink.PutValuations(context.Background(), first); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := sink.PutValuations(context.Background(), second); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := sink.PutValuations(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var blocks []uint64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.ValuationRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		blocks = append(blocks, record.BlockNumber)
	}
	if len(blocks) != 2 || blocks[0] != 10 || blocks[1] != 20 {
		t.Fatalf("blocks mismatch: %v", blocks)
	}
}

type recordingSink struct {
	count int
	err   error
}

func (r *recordingSink) PutValuations(_ context.Context, records []model.ValuationRecord) error {
	r.count += len(records)
	return r.err
}

func TestMultiStopsAtFirstError(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("db down")}
	c := &recordingSink{}

	err := Multi{a, nil, b, c}.PutValuations(context.Background(), []model.ValuationRecord{{}, {}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if a.count != 2 || b.count != 2 || c.count != 0 {
		t.Fatalf("unexpected counts: %d %d %d", a.count, b.count, c.count)
	}
}
