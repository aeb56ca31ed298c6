// Package storetest is a conformance suite run against every
// [blockstore.Store] implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/meetscribe/internal/blockstore"
	"github.com/MrWong99/meetscribe/internal/caption"
	"github.com/MrWong99/meetscribe/internal/transcript"
)

// Run exercises s. newStore must return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) blockstore.Store) {
	t.Helper()

	t.Run("BlocksRoundTrip", func(t *testing.T) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		ctx := context.Background()
		id := sessionID(t)

		if err := s.StartSession(ctx, blockstore.Session{ID: id, Title: "Sprint review", StartedAt: base}); err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		want := []caption.Block{
			{
				Timestamp:   base.Add(time.Minute),
				Meta:        "[Sprint review]",
				RawForensic: "[Ana]: we moved the cluster to kubernetes",
				LiveClean:   "[Ana]: we moved the cluster to Kubernetes",
				AIPayload:   "[Ana]: we moved the cluster to Kubernetes",
				Hints:       []transcript.Hint{{ConceptID: "k8s", Message: "Kubernetes"}},
				WordCount:   9,
			},
			{
				Timestamp:   base.Add(2 * time.Minute),
				RawForensic: "[Luis]: ok",
				WordCount:   2,
			},
		}
		for i, b := range want {
			if err := s.SaveBlock(ctx, id, b); err != nil {
				t.Fatalf("SaveBlock(%d): %v", i, err)
			}
		}
		// A block for another session must not leak.
		if err := s.SaveBlock(ctx, id+"-other", caption.Block{Timestamp: base, RawForensic: "x"}); err != nil {
			t.Fatalf("SaveBlock(other): %v", err)
		}

		got, err := s.Blocks(ctx, id)
		if err != nil {
			t.Fatalf("Blocks: %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("Blocks returned %d blocks, want %d", len(got), len(want))
		}
		for i := range want {
			if err := sameBlock(got[i], want[i]); err != nil {
				t.Errorf("block %d: %v", i, err)
			}
		}
	})

	t.Run("MinutesOrder", func(t *testing.T) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		ctx := context.Background()
		id := sessionID(t)

		texts := []string{"first", "second", "third"}
		for i, text := range texts {
			m := blockstore.Minutes{Timestamp: base.Add(time.Duration(i) * time.Minute), Text: text}
			if err := s.SaveMinutes(ctx, id, m); err != nil {
				t.Fatalf("SaveMinutes: %v", err)
			}
		}
		got, err := s.Minutes(ctx, id)
		if err != nil {
			t.Fatalf("Minutes: %v", err)
		}
		if len(got) != len(texts) {
			t.Fatalf("Minutes returned %d entries, want %d", len(got), len(texts))
		}
		for i, text := range texts {
			if got[i].Text != text {
				t.Errorf("minutes[%d] = %q, want %q", i, got[i].Text, text)
			}
			if want := base.Add(time.Duration(i) * time.Minute); !got[i].Timestamp.Equal(want) {
				t.Errorf("minutes[%d] timestamp = %v, want %v", i, got[i].Timestamp, want)
			}
		}
	})

	t.Run("DocumentReplace", func(t *testing.T) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		ctx := context.Background()
		id := sessionID(t)

		if _, err := s.Document(ctx, id); !errors.Is(err, blockstore.ErrNotFound) {
			t.Fatalf("Document before save = %v, want ErrNotFound", err)
		}
		for _, name := range []string{"draft", "Sprint_review"} {
			d := blockstore.Document{Name: name, Content: "# MINUTES: " + name, CreatedAt: base}
			if err := s.SaveDocument(ctx, id, d); err != nil {
				t.Fatalf("SaveDocument(%s): %v", name, err)
			}
		}
		got, err := s.Document(ctx, id)
		if err != nil {
			t.Fatalf("Document: %v", err)
		}
		if got.Name != "Sprint_review" || got.Content != "# MINUTES: Sprint_review" {
			t.Errorf("Document = %+v, want the second save", got)
		}
	})

	t.Run("EmptySession", func(t *testing.T) {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		ctx := context.Background()

		blocks, err := s.Blocks(ctx, "missing")
		if err != nil || len(blocks) != 0 {
			t.Errorf("Blocks(missing) = %v, %v; want empty", blocks, err)
		}
		minutes, err := s.Minutes(ctx, "missing")
		if err != nil || len(minutes) != 0 {
			t.Errorf("Minutes(missing) = %v, %v; want empty", minutes, err)
		}
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

// base is whole seconds so every backend stores it exactly.
var base = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func sessionID(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func sameBlock(got, want caption.Block) error {
	switch {
	case !got.Timestamp.Equal(want.Timestamp):
		return fmt.Errorf("timestamp %v, want %v", got.Timestamp, want.Timestamp)
	case got.Meta != want.Meta:
		return fmt.Errorf("meta %q, want %q", got.Meta, want.Meta)
	case got.RawForensic != want.RawForensic:
		return fmt.Errorf("raw %q, want %q", got.RawForensic, want.RawForensic)
	case got.LiveClean != want.LiveClean:
		return fmt.Errorf("live %q, want %q", got.LiveClean, want.LiveClean)
	case got.AIPayload != want.AIPayload:
		return fmt.Errorf("payload %q, want %q", got.AIPayload, want.AIPayload)
	case got.WordCount != want.WordCount:
		return fmt.Errorf("word count %d, want %d", got.WordCount, want.WordCount)
	case len(got.Hints) != len(want.Hints):
		return fmt.Errorf("hints %v, want %v", got.Hints, want.Hints)
	}
	for i := range want.Hints {
		if got.Hints[i] != want.Hints[i] {
			return fmt.Errorf("hint %d = %v, want %v", i, got.Hints[i], want.Hints[i])
		}
	}
	return nil
}
