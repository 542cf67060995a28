package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/kathakali/internal/app"
	"github.com/ayusman/kathakali/internal/avatar"
	"github.com/ayusman/kathakali/internal/rig"
	"github.com/ayusman/kathakali/internal/store"
)

type fakeTracker struct {
	mu     sync.Mutex
	report app.Report
	calls  []bool
}

func (f *fakeTracker) Report() app.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report
}

func (f *fakeTracker) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enabled)
	f.report.Enabled = enabled
	if enabled {
		f.report.Status = app.StatusLoading
	} else {
		f.report.Status = app.StatusIdle
	}
}

func TestStatusHandler(t *testing.T) {
	tracker := &fakeTracker{report: app.Report{
		Status:  app.StatusCameraFailed,
		Error:   "camera unavailable: permission denied",
		Enabled: true,
	}}
	h := NewStatusHandler(tracker)

	rec := doJSON(t, h, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var got app.Report
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Status != app.StatusCameraFailed || got.Error == "" {
		t.Errorf("unexpected report %+v", got)
	}

	if rec := doJSON(t, h, http.MethodPost, "/api/status", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestTrackingHandler(t *testing.T) {
	t.Run("disable", func(t *testing.T) {
		tracker := &fakeTracker{report: app.Report{Status: app.StatusTracking, Enabled: true}}
		h := NewTrackingHandler(tracker)

		rec := doJSON(t, h, http.MethodPut, "/api/tracking", map[string]bool{"enabled": false})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		var got app.Report
		json.NewDecoder(rec.Body).Decode(&got)
		if got.Enabled || got.Status != app.StatusIdle {
			t.Errorf("unexpected report %+v", got)
		}
		if len(tracker.calls) != 1 || tracker.calls[0] {
			t.Errorf("expected a single SetEnabled(false), got %v", tracker.calls)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		tracker := &fakeTracker{}
		h := NewTrackingHandler(tracker)

		rec := doJSON(t, h, http.MethodPut, "/api/tracking", map[string]string{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
		if len(tracker.calls) != 0 {
			t.Error("SetEnabled must not be called on a bad request")
		}
	})

	t.Run("get", func(t *testing.T) {
		h := NewTrackingHandler(&fakeTracker{report: app.Report{Enabled: true}})
		if rec := doJSON(t, h, http.MethodGet, "/api/tracking", nil); rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
	})
}

func TestChannelsHandler(t *testing.T) {
	model := avatar.ARKitModel()
	model.SetInfluence(model.Channels()["jawOpen"], 0.4)
	names := rig.NewNameMap(map[string]string{"tongueOut": "jawOpen", "mouthClose": ""})
	h := NewChannelsHandler(model, func() *rig.NameMap { return names })

	rec := doJSON(t, h, http.MethodGet, "/api/channels", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var got channelsResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got.Channels) != len(rig.ARKitNames) {
		t.Fatalf("expected %d channels, got %d", len(rig.ARKitNames), len(got.Channels))
	}
	for i := 1; i < len(got.Channels); i++ {
		if got.Channels[i].Slot < got.Channels[i-1].Slot {
			t.Fatal("channels are not ordered by slot")
		}
	}

	byName := make(map[string]channelResponse)
	for _, c := range got.Channels {
		byName[c.Name] = c
	}
	jaw := byName["jawOpen"]
	if jaw.Weight != 0.4 {
		t.Errorf("expected jawOpen weight 0.4, got %f", jaw.Weight)
	}
	if len(jaw.Sources) != 2 || jaw.Sources[0] != "jawOpen" || jaw.Sources[1] != "tongueOut" {
		t.Errorf("expected jawOpen driven by jawOpen and tongueOut, got %v", jaw.Sources)
	}
	if len(byName["mouthClose"].Sources) != 0 {
		t.Errorf("dropped source should drive nothing, got %v", byName["mouthClose"].Sources)
	}
	if got.Bones[rig.BoneHead] == "" {
		t.Error("expected the head bone to be reported")
	}
}

func TestSessionsHandler(t *testing.T) {
	s := newTestStore(t)
	start := time.Now().Add(-time.Minute)
	for i, id := range []string{"s1", "s2", "s3"} {
		sess := &store.Session{ID: id, StartedAt: start.Add(time.Duration(i) * time.Second), Status: "loading"}
		if err := s.Sessions().Start(sess); err != nil {
			t.Fatalf("failed to start session: %v", err)
		}
	}
	s.Sessions().Finish(&store.Session{ID: "s1", Status: "camera_failed", Error: "denied"})

	h := NewSessionsHandler(s)

	t.Run("newest first with limit", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/sessions?limit=2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var got listSessionsResponse
		json.NewDecoder(rec.Body).Decode(&got)
		if len(got.Sessions) != 2 || got.Sessions[0].ID != "s3" {
			t.Errorf("unexpected sessions %+v", got.Sessions)
		}
		if got.Sessions[0].EndedAt != nil {
			t.Error("running session should have no end time")
		}
	})

	t.Run("finished session", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/sessions", nil)
		var got listSessionsResponse
		json.NewDecoder(rec.Body).Decode(&got)
		if len(got.Sessions) != 3 {
			t.Fatalf("expected 3 sessions, got %d", len(got.Sessions))
		}
		last := got.Sessions[2]
		if last.ID != "s1" || last.EndedAt == nil || last.Error != "denied" {
			t.Errorf("unexpected finished session %+v", last)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/sessions?limit=zero", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})
}
