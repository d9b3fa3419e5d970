package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSampleRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	createStroke(t, s, "a", "line")

	samples := []json.RawMessage{
		json.RawMessage(`{"path":[{"x":0,"y":0,"timestamp":0}],"timestamp":1}`),
		json.RawMessage(`{"path":[{"x":1,"y":1,"timestamp":0}],"timestamp":2}`),
	}
	if err := s.Samples().Create("a", samples); err != nil {
		t.Fatalf("failed to create samples: %v", err)
	}

	got, err := s.Samples().GetByStrokeID("a")
	if err != nil {
		t.Fatalf("failed to get samples: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	for i, sample := range got {
		if sample.SampleIndex != i {
			t.Errorf("sample %d has index %d", i, sample.SampleIndex)
		}
		if string(sample.Data) != string(samples[i]) {
			t.Errorf("sample %d data = %s", i, sample.Data)
		}
	}

	st, _ := s.Strokes().GetByID("a")
	if st.Samples != 2 {
		t.Errorf("stroke sample count = %d, want 2", st.Samples)
	}
}

func TestSampleRepository_CreateReplaces(t *testing.T) {
	s := newTestStore(t)
	createStroke(t, s, "a", "line")

	first := []json.RawMessage{json.RawMessage(`{}`), json.RawMessage(`{}`), json.RawMessage(`{}`)}
	if err := s.Samples().Create("a", first); err != nil {
		t.Fatalf("failed to create samples: %v", err)
	}
	if err := s.Samples().Create("a", first[:1]); err != nil {
		t.Fatalf("failed to replace samples: %v", err)
	}

	got, _ := s.Samples().GetByStrokeID("a")
	if len(got) != 1 {
		t.Errorf("expected 1 sample after replace, got %d", len(got))
	}
}

func TestSampleRepository_UnknownStroke(t *testing.T) {
	s := newTestStore(t)

	if err := s.Samples().Create("missing", []json.RawMessage{json.RawMessage(`{}`)}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown stroke, got %v", err)
	}
}

func TestSampleRepository_DeleteByStrokeID(t *testing.T) {
	s := newTestStore(t)
	createStroke(t, s, "a", "line")

	if err := s.Samples().Create("a", []json.RawMessage{json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("failed to create samples: %v", err)
	}
	if err := s.Samples().DeleteByStrokeID("a"); err != nil {
		t.Fatalf("failed to delete samples: %v", err)
	}

	got, _ := s.Samples().GetByStrokeID("a")
	if len(got) != 0 {
		t.Errorf("expected no samples, got %d", len(got))
	}
}
